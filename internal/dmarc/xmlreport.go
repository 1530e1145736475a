package dmarc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// XMLReport represents the top element of a DMARC report as described by
// the published schema, with the schema constraints as validation tags.
// https://tools.ietf.org/html/rfc7489#appendix-C
// https://dmarc.org/dmarc-xml/0.1/rua.xsd
type XMLReport struct {
	XMLName        xml.Name `xml:"feedback"`
	Version        string   `xml:"version"`
	ReportMetadata struct {
		OrgName          string `xml:"org_name" validate:"required"`
		Email            string `xml:"email" validate:"required"`
		ExtraContactInfo string `xml:"extra_contact_info"`
		ReportID         string `xml:"report_id" validate:"required"`
		DateRange        struct {
			Begin string `xml:"begin" validate:"required,number"`
			End   string `xml:"end" validate:"required,number"`
		} `xml:"date_range"`
		Error []string `xml:"error"`
	} `xml:"report_metadata"`
	PolicyPublished struct {
		Domain string `xml:"domain" validate:"required"`
		Adkim  string `xml:"adkim" validate:"omitempty,oneof=r s"`
		Aspf   string `xml:"aspf" validate:"omitempty,oneof=r s"`
		P      string `xml:"p" validate:"required,oneof=none quarantine reject"`
		Sp     string `xml:"sp" validate:"required,oneof=none quarantine reject"`
		Pct    string `xml:"pct" validate:"required,number,between=0 100"`
		Fo     string `xml:"fo"`
	} `xml:"policy_published"`
	Records []XMLRecord `xml:"record" validate:"min=1,dive"`
}

// XMLRecord represents the record element of a DMARC report
type XMLRecord struct {
	Row struct {
		SourceIP        string `xml:"source_ip" validate:"required,ip"`
		Count           string `xml:"count" validate:"required,number"`
		PolicyEvaluated struct {
			Disposition string                    `xml:"disposition" validate:"required,oneof=none quarantine reject"`
			Dkim        string                    `xml:"dkim" validate:"required,oneof=pass fail"`
			Spf         string                    `xml:"spf" validate:"required,oneof=pass fail"`
			Reason      []XMLPolicyOverrideReason `xml:"reason" validate:"dive"`
		} `xml:"policy_evaluated"`
	} `xml:"row"`
	Identifiers struct {
		EnvelopeTo   string `xml:"envelope_to"`
		HeaderFrom   string `xml:"header_from" validate:"required"`
		EnvelopeFrom string `xml:"envelope_from"`
	} `xml:"identifiers"`
	AuthResults struct {
		Dkim []struct {
			Domain      string `xml:"domain" validate:"required"`
			Selector    string `xml:"selector"`
			Result      string `xml:"result" validate:"required,oneof=none pass fail policy neutral temperror permerror"`
			HumanResult string `xml:"human_result"`
		} `xml:"dkim" validate:"dive"`
		Spf []struct {
			Domain string `xml:"domain" validate:"required"`
			Scope  string `xml:"scope" validate:"omitempty,oneof=helo mfrom"`
			Result string `xml:"result" validate:"required,oneof=none neutral pass fail softfail temperror permerror"`
		} `xml:"spf" validate:"min=1,dive"`
	} `xml:"auth_results"`
}

// XMLPolicyOverrideReason represents the reason element of a DMARC report
type XMLPolicyOverrideReason struct {
	Type    string `xml:"type" validate:"required,oneof=forwarded sampled_out trusted_forwarder mailing_list local_policy other"`
	Comment string `xml:"comment"`
}

// ValidateSchema checks content against the structure and value
// constraints of the aggregate report schema. It is stricter than Parse:
// sp and pct are required, every record needs an spf result and the
// evaluated dkim and spf results can only be pass or fail.
func ValidateSchema(content string) error {
	return validateSchema("", content)
}

func validateSchema(filename, content string) error {
	// some xmls contain invalid XML by adding an unclosed xs tag
	content = strings.ReplaceAll(content, xsTag, "")

	dec := xml.NewDecoder(strings.NewReader(content))
	dec.CharsetReader = passThroughCharset

	var xmlDocument XMLReport
	if err := dec.Decode(&xmlDocument); err != nil {
		return &ReadFailureError{Path: filename, Cause: fmt.Errorf("error on xml unmarshal: %w", err)}
	}
	if err := checkTrailingContent(dec); err != nil {
		return &ReadFailureError{Path: filename, Cause: err}
	}
	trimReport(&xmlDocument)
	return validateStruct("feedback", xmlDocument)
}

// checkTrailingContent makes sure nothing but whitespace, comments and
// processing instructions follows the document element
func checkTrailingContent(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error after document element: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return fmt.Errorf("junk after document element: <%s>", t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("junk after document element: text outside of the root element")
			}
		}
	}
}

// trimReport strips the whitespace pretty printed reports carry around
// values that are checked against an enumeration or a number format
func trimReport(r *XMLReport) {
	r.ReportMetadata.DateRange.Begin = strings.TrimSpace(r.ReportMetadata.DateRange.Begin)
	r.ReportMetadata.DateRange.End = strings.TrimSpace(r.ReportMetadata.DateRange.End)
	r.PolicyPublished.Adkim = strings.TrimSpace(r.PolicyPublished.Adkim)
	r.PolicyPublished.Aspf = strings.TrimSpace(r.PolicyPublished.Aspf)
	r.PolicyPublished.P = strings.TrimSpace(r.PolicyPublished.P)
	r.PolicyPublished.Sp = strings.TrimSpace(r.PolicyPublished.Sp)
	r.PolicyPublished.Pct = strings.TrimSpace(r.PolicyPublished.Pct)
	for i := range r.Records {
		row := &r.Records[i].Row
		row.SourceIP = strings.TrimSpace(row.SourceIP)
		row.Count = strings.TrimSpace(row.Count)
		row.PolicyEvaluated.Disposition = strings.TrimSpace(row.PolicyEvaluated.Disposition)
		row.PolicyEvaluated.Dkim = strings.TrimSpace(row.PolicyEvaluated.Dkim)
		row.PolicyEvaluated.Spf = strings.TrimSpace(row.PolicyEvaluated.Spf)
	}
}
