package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/firefart/dmarcreport/internal/config"
	"github.com/firefart/dmarcreport/internal/display"
	"github.com/firefart/dmarcreport/internal/dmarc"
	"github.com/firefart/dmarcreport/internal/dns"
	"github.com/firefart/dmarcreport/internal/mail"
	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

type app struct {
	logger *log.Logger
	config *config.Configuration
	dns    *dns.CachedDNSResolver
	out    io.Writer
	errOut io.Writer
}

type flags struct {
	configFile string
	debug      bool
	strict     bool
	resolve    bool
	noColor    bool
	format     string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "dmarc-report [flags] FILE...",
		Short: "Parse and display DMARC aggregate reports",
		Long: `Parses DMARC aggregate reports in .xml, .gz or .zip format and prints
the policy, report metadata, summary statistics and all message records.

Example:
  dmarc-report report.xml.gz
  dmarc-report --format json --resolve google.com!example.com!1704067200!1704153599.zip`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f)
			if err != nil {
				return err
			}
			return a.processFiles(cmd.Context(), args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&f.configFile, "config", "", "config file to use")
	rootCmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "print debug output")
	rootCmd.PersistentFlags().BoolVar(&f.strict, "strict", false, "validate reports against the aggregate report schema first")
	rootCmd.PersistentFlags().BoolVar(&f.resolve, "resolve", false, "resolve the host names of source ips")
	rootCmd.PersistentFlags().BoolVar(&f.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&f.format, "format", "text", "output format (text, json, xml)")

	mailCmd := &cobra.Command{
		Use:   "mail FILE.eml",
		Short: "Parse the reports attached to a saved mail message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f)
			if err != nil {
				return err
			}
			return a.processMail(cmd.Context(), args[0])
		},
	}
	rootCmd.AddCommand(mailCmd)

	return rootCmd
}

// newApp loads the config file and applies the flags that were set on the
// command line on top of it
func newApp(cmd *cobra.Command, f flags) (*app, error) {
	errOut := cmd.ErrOrStderr()

	settings := config.Defaults()
	if f.configFile != "" {
		s, err := config.GetConfig(settings, f.configFile)
		if err != nil {
			fmt.Fprintf(errOut, "could not read %s: %v\n", f.configFile, err)
			return nil, err
		}
		settings = *s
	}

	changed := cmd.Flags().Changed
	if changed("format") {
		settings.Format = f.format
	}
	if changed("strict") {
		settings.Strict = f.strict
	}
	if changed("resolve") {
		settings.Resolve = f.resolve
	}
	if changed("no-color") {
		settings.NoColor = f.noColor
	}
	if f.debug {
		settings.LogLevel = "debug"
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(errOut, "invalid settings: %v\n", err)
		return nil, err
	}

	logger := newLogger(errOut, settings)
	logger.Debugf("using settings: %+v", settings)

	a := &app{
		logger: logger,
		config: &settings,
		out:    cmd.OutOrStdout(),
		errOut: errOut,
	}
	if settings.Resolve {
		a.dns = dns.NewCachedDNSResolver(settings.DnsServer, settings.DnsConnectTimeout.Duration,
			settings.DnsTimeout.Duration, settings.DnsCacheTimeout.Duration, logger)
	}
	return a, nil
}

func newLogger(w io.Writer, settings config.Configuration) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
	})
	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	if settings.NoColor || !isTerminal(w) {
		logger.SetColorProfile(termenv.Ascii)
	}
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// processFiles handles every file on its own, a failing file does not stop
// the others
func (a *app) processFiles(ctx context.Context, paths []string) error {
	var result *multierror.Error
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(a.errOut, "File not found: %s\n", path)
			} else {
				fmt.Fprintf(a.errOut, "Failed to process %s: %v\n", path, err)
			}
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}

		report, err := a.parseFile(path)
		if err != nil {
			fmt.Fprintf(a.errOut, "Failed to process %s: %v\n", path, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if err := a.output(ctx, report); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
		}
	}
	return result.ErrorOrNil()
}

func (a *app) parseFile(path string) (*dmarc.Report, error) {
	a.logger.Debugf("parsing %s", path)
	if a.config.Strict {
		return dmarc.ParseFileStrict(path)
	}
	return dmarc.ParseFile(path)
}

// processMail parses every report attached to a saved message
func (a *app) processMail(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(a.errOut, "File not found: %s\n", path)
		} else {
			fmt.Fprintf(a.errOut, "Failed to process %s: %v\n", path, err)
		}
		return err
	}
	defer f.Close()

	attachments, err := mail.ExtractAttachments(f, a.logger)
	if err != nil {
		fmt.Fprintf(a.errOut, "Failed to process %s: %v\n", path, err)
		return err
	}

	var result *multierror.Error
	for _, att := range attachments {
		a.logger.Infof("processing attachment %s", att.Filename)
		report, err := a.parseContent(att)
		if err != nil {
			fmt.Fprintf(a.errOut, "Failed to process %s: %v\n", att.Filename, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", att.Filename, err))
			continue
		}
		if err := a.output(ctx, report); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", att.Filename, err))
		}
	}
	return result.ErrorOrNil()
}

func (a *app) parseContent(att mail.Attachment) (*dmarc.Report, error) {
	content, err := dmarc.ReadContent(att.Filename, att.Content)
	if err != nil {
		return nil, err
	}
	if a.config.Strict {
		if err := dmarc.ValidateSchema(content); err != nil {
			return nil, err
		}
	}
	return dmarc.Parse(content)
}

// resolver returns nil if name resolution is disabled so the interface
// stays nil for ConvertToEntries
func (a *app) resolver() dmarc.Resolver {
	if a.dns == nil {
		return nil
	}
	return a.dns
}

func (a *app) output(ctx context.Context, report *dmarc.Report) error {
	switch a.config.Format {
	case "json", "xml":
		convert := dmarc.ConvertToJSON
		if a.config.Format == "xml" {
			convert = dmarc.ConvertToXML
		}
		docs, err := convert(ctx, report, a.resolver(), a.config.EventID, a.config.EventCategory)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if _, err := fmt.Fprintln(a.out, string(d)); err != nil {
				return fmt.Errorf("could not write output: %w", err)
			}
		}
		return nil
	default:
		opts := display.Options{NoColor: a.config.NoColor}
		if a.dns != nil {
			opts.Hostnames = a.lookupHostnames(ctx, report)
		}
		return display.Render(a.out, report, report.SummaryStats(), opts)
	}
}

func (a *app) lookupHostnames(ctx context.Context, report *dmarc.Report) map[string][]string {
	hostnames := make(map[string][]string)
	for _, r := range report.Records {
		if _, ok := hostnames[r.SourceIP]; ok {
			continue
		}
		names, err := a.dns.CachedDNSLookup(ctx, r.SourceIP)
		if err != nil {
			a.logger.Debugf("could not resolve %s: %v", r.SourceIP, err)
		}
		hostnames[r.SourceIP] = names
	}
	return hostnames
}
