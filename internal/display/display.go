package display

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/firefart/dmarcreport/internal/dmarc"
	"github.com/muesli/termenv"
)

var (
	primary = lipgloss.Color("#7D56F4")
	keyCol  = lipgloss.Color("#00D4AA")
	valCol  = lipgloss.Color("#00D26A")
	countC  = lipgloss.Color("#FF79C6")
	authCol = lipgloss.Color("#FFD93D")
	fromCol = lipgloss.Color("#4D96FF")
	failCol = lipgloss.Color("#FF3838")
	muted   = lipgloss.Color("#6B7280")
)

// Options controls the terminal output
type Options struct {
	// NoColor renders plain text without escape sequences
	NoColor bool
	// Hostnames maps a source ip to its resolved names. A Hostnames column
	// is only shown if this is not nil.
	Hostnames map[string][]string
}

type styles struct {
	title  lipgloss.Style
	border lipgloss.Style
	header lipgloss.Style
	key    lipgloss.Style
	value  lipgloss.Style
	cell   lipgloss.Style
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(primary).Padding(0, 1),
		border: r.NewStyle().Foreground(muted),
		header: r.NewStyle().Bold(true).Foreground(primary).Padding(0, 1),
		key:    r.NewStyle().Foreground(keyCol).Padding(0, 1),
		value:  r.NewStyle().Foreground(valCol).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
	}
}

// Render writes the report and its statistics as a set of tables
func Render(w io.Writer, report *dmarc.Report, summary dmarc.Summary, opts Options) error {
	s := newStyles(w, opts.NoColor)

	var b strings.Builder
	b.WriteString(s.title.Render(fmt.Sprintf("DMARC Report for %s", report.Domain())))
	b.WriteString("\n\n")
	b.WriteString(s.keyValueTable("DMARC Policy Details", policyRows(report.PolicyPublished)))
	b.WriteString("\n\n")
	b.WriteString(s.keyValueTable("Report Metadata", metadataRows(report.ReportMetadata)))
	b.WriteString("\n\n")
	b.WriteString(s.keyValueTable("Summary Statistics", summaryRows(summary)))
	b.WriteString("\n\n")
	b.WriteString(s.recordsTable(report.Records, opts.Hostnames))
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	return nil
}

// FormatRate renders a ratio between 0 and 1 as a percentage
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func policyRows(p dmarc.PolicyPublished) [][]string {
	rows := [][]string{
		{"Domain", p.Domain},
		{"DKIM Alignment", string(p.ADKIM)},
		{"SPF Alignment", string(p.ASPF)},
		{"Policy", string(p.P)},
		{"Subdomain Policy", string(p.SP)},
		{"Percent", strconv.Itoa(p.Pct) + "%"},
	}
	if p.FO != "" {
		rows = append(rows, []string{"Failure Options", p.FO})
	}
	return rows
}

func metadataRows(m dmarc.ReportMetadata) [][]string {
	rows := [][]string{
		{"Org name", m.OrgName},
		{"Email", m.Email},
		{"Extra contact info", m.ExtraContactInfo},
		{"Report ID", m.ReportID},
		{"Date range", m.DateRange.String()},
	}
	for _, e := range m.Errors {
		rows = append(rows, []string{"Error", e})
	}
	return rows
}

func summaryRows(s dmarc.Summary) [][]string {
	rows := [][]string{
		{"Total Messages", strconv.Itoa(s.TotalMessages)},
		{"Unique Sources", strconv.Itoa(s.UniqueSources)},
		{"DKIM Pass Rate", FormatRate(s.DKIMPassRate)},
		{"SPF Pass Rate", FormatRate(s.SPFPassRate)},
	}
	// map order is random
	for _, d := range slices.Sorted(maps.Keys(s.Dispositions)) {
		rows = append(rows, []string{"Disposition " + string(d), strconv.Itoa(s.Dispositions[d])})
	}
	return rows
}

func (s styles) keyValueTable(title string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Rows(rows...).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return s.key
			}
			return s.value
		})
	return s.header.Render(title) + "\n" + t.String()
}

func (s styles) recordsTable(records []dmarc.Record, hostnames map[string][]string) string {
	headers := []string{"Source IP"}
	if hostnames != nil {
		headers = append(headers, "Hostnames")
	}
	headers = append(headers, "Count", "Disposition", "DKIM", "SPF", "Header From", "Auth Results")
	// the hostnames column shifts every following column by one
	offset := len(headers) - 7

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{r.SourceIP}
		if hostnames != nil {
			row = append(row, strings.Join(hostnames[r.SourceIP], "\n"))
		}
		row = append(row,
			strconv.Itoa(r.Count),
			string(r.PolicyEvaluated.Disposition),
			string(r.PolicyEvaluated.DKIM),
			string(r.PolicyEvaluated.SPF),
			r.Identifiers.HeaderFrom,
			authResults(r.AuthResults),
		)
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			switch {
			case col == 0:
				return s.key
			case col == offset+1:
				return s.cell.Foreground(countC)
			case col == offset+2:
				return s.value
			case col == offset+3 || col == offset+4:
				if rows[row][col] != string(dmarc.AuthPass) {
					return s.cell.Foreground(failCol)
				}
				return s.cell.Foreground(authCol)
			case col == offset+5:
				return s.cell.Foreground(fromCol)
			case col == offset+6:
				return s.value
			}
			return s.cell
		})
	return s.header.Render("Message Records") + "\n" + t.String()
}

func authResults(a dmarc.AuthResults) string {
	lines := make([]string, 0, len(a.DKIM)+len(a.SPF))
	for _, d := range a.DKIM {
		lines = append(lines, fmt.Sprintf("dkim: %s (%s)", d.Domain, d.Result))
	}
	for _, s := range a.SPF {
		lines = append(lines, fmt.Sprintf("spf: %s (%s)", s.Domain, s.Result))
	}
	return strings.Join(lines, "\n")
}
