package dmarc

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Resolver looks up the host names of a source ip
type Resolver interface {
	CachedDNSLookup(ctx context.Context, ip string) ([]string, error)
}

type CustomTime time.Time

func (t CustomTime) MarshalJSON() ([]byte, error) {
	stamp := fmt.Sprintf("\"%s\"", time.Time(t).UTC().Format(time.RFC822Z))
	return []byte(stamp), nil
}

func (t CustomTime) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	stamp := time.Time(t).UTC().Format(time.RFC822Z)
	return e.EncodeElement(stamp, start)
}

// Entry is a single record of a report flattened together with the report
// metadata and the published policy
type Entry struct {
	XMLName          xml.Name             `xml:"entry" json:"-"`                                           // for xml serialisation
	EventID          string               `xml:"event_id,omitempty" json:"event_id,omitempty"`             // SIEM specific
	EventCategory    string               `xml:"event_category,omitempty" json:"event_category,omitempty"` // SIEM specific
	Version          string               `xml:"version,omitempty" json:"version,omitempty"`
	Domain           string               `xml:"domain" json:"domain"`
	DateBegin        int64                `xml:"date_begin" json:"date_begin"`
	DateEnd          int64                `xml:"date_end" json:"date_end"`
	DateBeginParsed  CustomTime           `xml:"date_begin_parsed" json:"date_begin_parsed"`
	DateEndParsed    CustomTime           `xml:"date_end_parsed" json:"date_end_parsed"`
	ReportID         string               `xml:"report_id" json:"report_id"`
	OrgName          string               `xml:"org_name" json:"org_name"`
	Email            string               `xml:"email" json:"email"`
	ExtraContactInfo string               `xml:"extra_contact_info,omitempty" json:"extra_contact_info,omitempty"`
	Errors           []string             `xml:"errors>error" json:"errors,omitempty"`
	SourceIP         string               `xml:"source_ip" json:"source_ip"`
	SourceDNS        []string             `xml:"source_dns>dns" json:"source_dns,omitempty"`
	SourceDNSString  string               `xml:"source_dns_string,omitempty" json:"source_dns_string,omitempty"`
	Count            int                  `xml:"count" json:"count"`
	EnvelopeTo       string               `xml:"envelope_to,omitempty" json:"envelope_to,omitempty"`
	HeaderFrom       string               `xml:"header_from" json:"header_from"`
	EnvelopeFrom     string               `xml:"envelope_from,omitempty" json:"envelope_from,omitempty"`
	PolicyPublished  EntryPolicyPublished `xml:"policy_published" json:"policy_published"`
	PolicyEvaluated  EntryPolicyEvaluated `xml:"policy_evaluated" json:"policy_evaluated"`
	ResultsSPF       []EntryResultSPF     `xml:"results_spf>spf" json:"results_spf"`
	ResultsDKIM      []EntryResultDKIM    `xml:"results_dkim>dkim" json:"results_dkim"`
}

type EntryPolicyPublished struct {
	Domain string `xml:"domain" json:"domain"`
	Adkim  string `xml:"adkim" json:"adkim"`
	Aspf   string `xml:"aspf" json:"aspf"`
	P      string `xml:"p" json:"p"`
	Sp     string `xml:"sp" json:"sp"`
	Pct    int    `xml:"pct" json:"pct"`
	Fo     string `xml:"fo,omitempty" json:"fo,omitempty"`
}

type EntryPolicyEvaluated struct {
	Disposition string                      `xml:"disposition" json:"disposition"`
	Dkim        string                      `xml:"dkim" json:"dkim"`
	Spf         string                      `xml:"spf" json:"spf"`
	Reason      []EntryPolicyOverrideReason `xml:"reason" json:"reason,omitempty"`
}

type EntryResultSPF struct {
	Domain      string `xml:"domain" json:"domain"`
	Scope       string `xml:"scope,omitempty" json:"scope,omitempty"`
	Result      string `xml:"result" json:"result"`
	HumanResult string `xml:"human_result,omitempty" json:"human_result,omitempty"`
}

type EntryResultDKIM struct {
	Domain      string `xml:"domain" json:"domain"`
	Selector    string `xml:"selector,omitempty" json:"selector,omitempty"`
	Result      string `xml:"result" json:"result"`
	HumanResult string `xml:"human_result,omitempty" json:"human_result,omitempty"`
}

type EntryPolicyOverrideReason struct {
	Type    string `xml:"type" json:"type"`
	Comment string `xml:"comment,omitempty" json:"comment,omitempty"`
}

// ConvertToJSON returns one JSON document per record
func ConvertToJSON(ctx context.Context, report *Report, resolver Resolver, eventID, eventCategory string) ([][]byte, error) {
	entries := ConvertToEntries(ctx, report, resolver, eventID, eventCategory)

	ret := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		jsonString, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("could not marshal JSON: %w", err)
		}
		ret = append(ret, jsonString)
	}
	return ret, nil
}

// ConvertToXML returns one XML document per record
func ConvertToXML(ctx context.Context, report *Report, resolver Resolver, eventID, eventCategory string) ([][]byte, error) {
	entries := ConvertToEntries(ctx, report, resolver, eventID, eventCategory)

	ret := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		xmlString, err := xml.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("could not marshal XML: %w", err)
		}
		ret = append(ret, xmlString)
	}
	return ret, nil
}

// ConvertToEntries flattens the report into one entry per record. resolver
// may be nil, source host names are left empty then. Lookup errors are not
// fatal.
func ConvertToEntries(ctx context.Context, report *Report, resolver Resolver, eventID, eventCategory string) []Entry {
	metadata := report.ReportMetadata
	policy := report.PolicyPublished

	entries := make([]Entry, len(report.Records))
	for i, record := range report.Records {
		var domains []string
		if resolver != nil {
			var err error
			domains, err = resolver.CachedDNSLookup(ctx, record.SourceIP)
			if err != nil {
				domains = []string{}
			}
		}

		var reasons []EntryPolicyOverrideReason
		for _, r := range record.PolicyEvaluated.Reasons {
			reasons = append(reasons, EntryPolicyOverrideReason{
				Type:    r.Type,
				Comment: r.Comment,
			})
		}

		spf := make([]EntryResultSPF, 0, len(record.AuthResults.SPF))
		for _, r := range record.AuthResults.SPF {
			spf = append(spf, EntryResultSPF{
				Domain:      r.Domain,
				Scope:       string(r.Scope),
				Result:      string(r.Result),
				HumanResult: r.HumanResult,
			})
		}

		dkim := make([]EntryResultDKIM, 0, len(record.AuthResults.DKIM))
		for _, r := range record.AuthResults.DKIM {
			dkim = append(dkim, EntryResultDKIM{
				Domain:      r.Domain,
				Selector:    r.Selector,
				Result:      string(r.Result),
				HumanResult: r.HumanResult,
			})
		}

		entries[i] = Entry{
			EventID:          eventID,
			EventCategory:    eventCategory,
			Version:          report.Version,
			Domain:           policy.Domain,
			DateBegin:        metadata.DateRange.Begin,
			DateEnd:          metadata.DateRange.End,
			DateBeginParsed:  CustomTime(time.Unix(metadata.DateRange.Begin, 0)),
			DateEndParsed:    CustomTime(time.Unix(metadata.DateRange.End, 0)),
			ReportID:         metadata.ReportID,
			OrgName:          metadata.OrgName,
			Email:            metadata.Email,
			ExtraContactInfo: metadata.ExtraContactInfo,
			Errors:           metadata.Errors,
			SourceIP:         record.SourceIP,
			SourceDNS:        domains,
			SourceDNSString:  strings.Join(domains, ", "),
			Count:            record.Count,
			EnvelopeTo:       record.Identifiers.EnvelopeTo,
			EnvelopeFrom:     record.Identifiers.EnvelopeFrom,
			HeaderFrom:       record.Identifiers.HeaderFrom,
			PolicyPublished: EntryPolicyPublished{
				Domain: policy.Domain,
				Adkim:  string(policy.ADKIM),
				Aspf:   string(policy.ASPF),
				P:      string(policy.P),
				Sp:     string(policy.SP),
				Pct:    policy.Pct,
				Fo:     policy.FO,
			},
			PolicyEvaluated: EntryPolicyEvaluated{
				Disposition: string(record.PolicyEvaluated.Disposition),
				Dkim:        string(record.PolicyEvaluated.DKIM),
				Spf:         string(record.PolicyEvaluated.SPF),
				Reason:      reasons,
			},
			ResultsSPF:  spf,
			ResultsDKIM: dkim,
		}
	}
	return entries
}
