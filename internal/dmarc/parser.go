package dmarc

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/beevik/etree"
)

const xsTag = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="http://dmarc.org/dmarc-xml/0.1">`

// ParseFile reads a .xml, .xml.gz or .zip report and parses it
func ParseFile(filename string) (*Report, error) {
	content, err := ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return parse(filename, content)
}

// ParseFileStrict is ParseFile with the schema checks of ValidateSchema run
// before the report is parsed.
func ParseFileStrict(filename string) (*Report, error) {
	content, err := ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(filename, content); err != nil {
		return nil, err
	}
	return parse(filename, content)
}

// Parse parses the XML text of an aggregate report. Either the complete
// report is returned or an error.
func Parse(content string) (*Report, error) {
	return parse("", content)
}

func parse(filename, content string) (*Report, error) {
	doc, err := readDocument(content)
	if err != nil {
		return nil, &ReadFailureError{Path: filename, Cause: err}
	}
	return parseReport(doc.Root())
}

func readDocument(content string) (*etree.Document, error) {
	// some xmls contain invalid XML by adding an unclosed xs tag
	content = strings.ReplaceAll(content, xsTag, "")

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = passThroughCharset
	if err := doc.ReadFromString(content); err != nil {
		return nil, fmt.Errorf("could not parse xml: %w", err)
	}
	if err := checkSingleRoot(doc); err != nil {
		return nil, fmt.Errorf("could not parse xml: %w", err)
	}
	return doc, nil
}

// passThroughCharset is used as CharsetReader, content is already validated
// UTF-8 so whatever the declaration says is ignored
func passThroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

// checkSingleRoot rejects a second top level element or text outside of the
// root element, the tokenizer alone accepts both
func checkSingleRoot(doc *etree.Document) error {
	if n := len(doc.ChildElements()); n > 1 {
		return fmt.Errorf("junk after document element: found %d top level elements", n)
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return errors.New("junk after document element: text outside of the root element")
		}
	}
	return nil
}

func parseReport(root *etree.Element) (*Report, error) {
	if root == nil {
		return nil, &MissingFieldError{Locator: "feedback"}
	}

	metadata, err := parseMetadata(root)
	if err != nil {
		return nil, err
	}

	policy, err := parsePolicyPublished(root)
	if err != nil {
		return nil, err
	}

	// records are searched anywhere below the root
	var records []Record
	for i, elem := range root.FindElements(".//record") {
		record, err := parseRecord(fmt.Sprintf("record[%d]", i+1), elem)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return &Report{
		Version:         optionalText(root, "version"),
		ReportMetadata:  metadata,
		PolicyPublished: policy,
		Records:         records,
	}, nil
}

func parseMetadata(root *etree.Element) (ReportMetadata, error) {
	const loc = "report_metadata"
	md := root.SelectElement("report_metadata")
	if md == nil {
		return ReportMetadata{}, &MissingFieldError{Locator: loc}
	}

	orgName, err := requiredText(md, "org_name", loc)
	if err != nil {
		return ReportMetadata{}, err
	}
	email, err := requiredText(md, "email", loc)
	if err != nil {
		return ReportMetadata{}, err
	}
	reportID, err := requiredText(md, "report_id", loc)
	if err != nil {
		return ReportMetadata{}, err
	}

	dr := md.SelectElement("date_range")
	if dr == nil {
		return ReportMetadata{}, &MissingFieldError{Locator: loc + "/date_range"}
	}
	begin, err := requiredInt64(dr, "begin", loc+"/date_range")
	if err != nil {
		return ReportMetadata{}, err
	}
	end, err := requiredInt64(dr, "end", loc+"/date_range")
	if err != nil {
		return ReportMetadata{}, err
	}

	var reportErrors []string
	for _, e := range md.SelectElements("error") {
		if text := strings.TrimSpace(e.Text()); text != "" {
			reportErrors = append(reportErrors, text)
		}
	}

	metadata := ReportMetadata{
		OrgName:          orgName,
		Email:            email,
		ReportID:         reportID,
		DateRange:        DateRange{Begin: begin, End: end},
		ExtraContactInfo: optionalText(md, "extra_contact_info"),
		Errors:           reportErrors,
	}
	if err := metadata.Validate(); err != nil {
		return ReportMetadata{}, err
	}
	return metadata, nil
}

func parsePolicyPublished(root *etree.Element) (PolicyPublished, error) {
	const loc = "policy_published"
	pp := root.SelectElement("policy_published")
	if pp == nil {
		return PolicyPublished{}, &MissingFieldError{Locator: loc}
	}

	domain, err := requiredText(pp, "domain", loc)
	if err != nil {
		return PolicyPublished{}, err
	}
	pRaw, err := requiredText(pp, "p", loc)
	if err != nil {
		return PolicyPublished{}, err
	}
	p, err := parsePolicyType(loc+"/p", pRaw)
	if err != nil {
		return PolicyPublished{}, err
	}
	sp, err := parsePolicyType(loc+"/sp", textOrDefault(pp, "sp", string(PolicyNone)))
	if err != nil {
		return PolicyPublished{}, err
	}
	pct, err := parseInt(loc+"/pct", textOrDefault(pp, "pct", "100"))
	if err != nil {
		return PolicyPublished{}, err
	}
	adkim, err := parseAlignmentMode(loc+"/adkim", textOrDefault(pp, "adkim", string(AlignRelaxed)))
	if err != nil {
		return PolicyPublished{}, err
	}
	aspf, err := parseAlignmentMode(loc+"/aspf", textOrDefault(pp, "aspf", string(AlignRelaxed)))
	if err != nil {
		return PolicyPublished{}, err
	}

	policy := PolicyPublished{
		Domain: domain,
		P:      p,
		SP:     sp,
		Pct:    pct,
		ADKIM:  adkim,
		ASPF:   aspf,
		FO:     optionalText(pp, "fo"),
	}
	if err := policy.Validate(); err != nil {
		return PolicyPublished{}, err
	}
	return policy, nil
}

func parseRecord(loc string, rec *etree.Element) (Record, error) {
	authResults, err := parseAuthResults(loc, rec)
	if err != nil {
		return Record{}, err
	}

	sourceIP, err := requiredLeafText(rec, "source_ip", loc)
	if err != nil {
		return Record{}, err
	}
	countRaw, err := requiredLeafText(rec, "count", loc)
	if err != nil {
		return Record{}, err
	}
	count, err := parseInt(loc+"//count", countRaw)
	if err != nil {
		return Record{}, err
	}
	if count < 0 {
		return Record{}, &RangeViolationError{Field: loc + "//count", Value: int64(count), Min: 0, Max: math.MaxInt64}
	}

	evaluated, err := parsePolicyEvaluated(loc, rec)
	if err != nil {
		return Record{}, err
	}

	identifiers, err := parseIdentifiers(loc, rec)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		SourceIP:        sourceIP,
		Count:           count,
		PolicyEvaluated: evaluated,
		Identifiers:     identifiers,
		AuthResults:     authResults,
	}
	if err := record.Validate(loc); err != nil {
		return Record{}, err
	}
	return record, nil
}

func parseAuthResults(loc string, rec *etree.Element) (AuthResults, error) {
	ar := rec.SelectElement("auth_results")
	if ar == nil {
		return AuthResults{}, &MissingFieldError{Locator: loc + "/auth_results"}
	}
	loc += "/auth_results"

	var results AuthResults
	for i, d := range ar.SelectElements("dkim") {
		dloc := fmt.Sprintf("%s/dkim[%d]", loc, i+1)
		domain, err := requiredText(d, "domain", dloc)
		if err != nil {
			return AuthResults{}, err
		}
		raw, err := requiredText(d, "result", dloc)
		if err != nil {
			return AuthResults{}, err
		}
		result, err := parseAuthResult(dloc+"/result", raw)
		if err != nil {
			return AuthResults{}, err
		}
		results.DKIM = append(results.DKIM, DKIMAuthResult{
			Domain:      domain,
			Result:      result,
			Selector:    optionalText(d, "selector"),
			HumanResult: optionalText(d, "human_result"),
		})
	}

	for i, s := range ar.SelectElements("spf") {
		sloc := fmt.Sprintf("%s/spf[%d]", loc, i+1)
		domain, err := requiredText(s, "domain", sloc)
		if err != nil {
			return AuthResults{}, err
		}
		raw, err := requiredText(s, "result", sloc)
		if err != nil {
			return AuthResults{}, err
		}
		result, err := parseAuthResult(sloc+"/result", raw)
		if err != nil {
			return AuthResults{}, err
		}
		scope, err := parseSPFScope(sloc+"/scope", optionalText(s, "scope"))
		if err != nil {
			return AuthResults{}, err
		}
		results.SPF = append(results.SPF, SPFAuthResult{
			Domain:      domain,
			Result:      result,
			Scope:       scope,
			HumanResult: optionalText(s, "human_result"),
		})
	}
	return results, nil
}

func parsePolicyEvaluated(loc string, rec *etree.Element) (PolicyEvaluated, error) {
	dispositionRaw, err := requiredLeafText(rec, "disposition", loc)
	if err != nil {
		return PolicyEvaluated{}, err
	}
	disposition, err := parsePolicyType(loc+"//disposition", dispositionRaw)
	if err != nil {
		return PolicyEvaluated{}, err
	}
	dkimRaw, err := requiredLeafText(rec, "dkim", loc)
	if err != nil {
		return PolicyEvaluated{}, err
	}
	dkim, err := parseAuthResult(loc+"//dkim", dkimRaw)
	if err != nil {
		return PolicyEvaluated{}, err
	}
	spfRaw, err := requiredLeafText(rec, "spf", loc)
	if err != nil {
		return PolicyEvaluated{}, err
	}
	spf, err := parseAuthResult(loc+"//spf", spfRaw)
	if err != nil {
		return PolicyEvaluated{}, err
	}

	var reasons []PolicyOverrideReason
	for _, r := range rec.FindElements(".//policy_evaluated/reason") {
		reasons = append(reasons, PolicyOverrideReason{
			Type:    optionalText(r, "type"),
			Comment: optionalText(r, "comment"),
		})
	}

	return PolicyEvaluated{
		Disposition: disposition,
		DKIM:        dkim,
		SPF:         spf,
		Reasons:     reasons,
	}, nil
}

func parseIdentifiers(loc string, rec *etree.Element) (Identifier, error) {
	headerFrom := identifierText(rec, "header_from")
	if headerFrom == "" {
		return Identifier{}, &MissingFieldError{Locator: loc + "//identifiers/header_from"}
	}
	return Identifier{
		HeaderFrom:   headerFrom,
		EnvelopeFrom: identifierText(rec, "envelope_from"),
		EnvelopeTo:   identifierText(rec, "envelope_to"),
	}, nil
}

// identifierText also accepts the singular identifier container used by
// some reporters
func identifierText(rec *etree.Element, name string) string {
	for _, container := range []string{"identifiers", "identifier"} {
		if e := rec.FindElement(".//" + container + "/" + name); e != nil {
			if text := strings.TrimSpace(e.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func optionalText(parent *etree.Element, tag string) string {
	e := parent.SelectElement(tag)
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text())
}

func textOrDefault(parent *etree.Element, tag, def string) string {
	if text := optionalText(parent, tag); text != "" {
		return text
	}
	return def
}

func requiredText(parent *etree.Element, tag, loc string) (string, error) {
	text := optionalText(parent, tag)
	if text == "" {
		return "", &MissingFieldError{Locator: loc + "/" + tag}
	}
	return text, nil
}

func requiredInt64(parent *etree.Element, tag, loc string) (int64, error) {
	raw, err := requiredText(parent, tag, loc)
	if err != nil {
		return 0, err
	}
	return parseInt64(loc+"/"+tag, raw)
}

// findLeaf returns the first descendant named tag that has no child
// elements. Reports in the wild nest row fields differently so the lookup
// does not insist on the exact path, and skipping containers keeps
// auth_results/dkim from shadowing policy_evaluated/dkim.
func findLeaf(parent *etree.Element, tag string) *etree.Element {
	for _, e := range parent.FindElements(".//" + tag) {
		if len(e.ChildElements()) == 0 {
			return e
		}
	}
	return nil
}

func requiredLeafText(parent *etree.Element, tag, loc string) (string, error) {
	e := findLeaf(parent, tag)
	if e == nil {
		return "", &MissingFieldError{Locator: loc + "//" + tag}
	}
	text := strings.TrimSpace(e.Text())
	if text == "" {
		return "", &MissingFieldError{Locator: loc + "//" + tag}
	}
	return text, nil
}
