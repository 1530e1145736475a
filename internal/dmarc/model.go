package dmarc

import (
	"time"
)

// PolicyType is the requested or applied handling of failing messages
type PolicyType string

const (
	PolicyNone       PolicyType = "none"
	PolicyQuarantine PolicyType = "quarantine"
	PolicyReject     PolicyType = "reject"
)

var policyTypes = []PolicyType{PolicyNone, PolicyQuarantine, PolicyReject}

// AlignmentMode specifies how identifiers are compared to the From domain
type AlignmentMode string

const (
	AlignRelaxed AlignmentMode = "r"
	AlignStrict  AlignmentMode = "s"
)

var alignmentModes = []AlignmentMode{AlignRelaxed, AlignStrict}

// AuthResultType is the outcome of a DKIM or SPF check
type AuthResultType string

const (
	AuthNone      AuthResultType = "none"
	AuthPass      AuthResultType = "pass"
	AuthFail      AuthResultType = "fail"
	AuthPolicy    AuthResultType = "policy"
	AuthNeutral   AuthResultType = "neutral"
	AuthTempError AuthResultType = "temperror"
	AuthPermError AuthResultType = "permerror"
	// AuthSoftFail is only reported for SPF
	AuthSoftFail AuthResultType = "softfail"
)

var authResultTypes = []AuthResultType{
	AuthNone, AuthPass, AuthFail, AuthPolicy, AuthNeutral, AuthTempError, AuthPermError, AuthSoftFail,
}

// SPFScope is the identity SPF was checked against
type SPFScope string

const (
	SPFScopeHelo  SPFScope = "helo"
	SPFScopeMfrom SPFScope = "mfrom"
)

var spfScopes = []SPFScope{SPFScopeHelo, SPFScopeMfrom}

const dateFormat = "2006-01-02 15:04:05 UTC"

// DateRange is the reporting period as UTC unix timestamps.
// Begin is not required to be before End.
type DateRange struct {
	Begin int64 `json:"begin"`
	End   int64 `json:"end"`
}

func (d DateRange) String() string {
	return formatTimestamp(d.Begin) + " to " + formatTimestamp(d.End)
}

func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(dateFormat)
}

// ReportMetadata describes the organisation that sent the report
type ReportMetadata struct {
	OrgName          string    `json:"org_name" validate:"required"`
	Email            string    `json:"email" validate:"required"`
	ReportID         string    `json:"report_id" validate:"required"`
	DateRange        DateRange `json:"date_range"`
	ExtraContactInfo string    `json:"extra_contact_info,omitempty"`
	// Errors is passed through as found in the report
	Errors []string `json:"errors,omitempty"`
}

func (m ReportMetadata) Validate() error {
	return validateStruct("report_metadata", m)
}

// PolicyPublished is the DMARC record of the domain as seen by the reporter
type PolicyPublished struct {
	Domain string        `json:"domain" validate:"required"`
	P      PolicyType    `json:"p" validate:"required,oneof=none quarantine reject"`
	SP     PolicyType    `json:"sp" validate:"required,oneof=none quarantine reject"`
	Pct    int           `json:"pct" validate:"between=0 100"`
	ADKIM  AlignmentMode `json:"adkim" validate:"required,oneof=r s"`
	ASPF   AlignmentMode `json:"aspf" validate:"required,oneof=r s"`
	// FO holds the failure reporting options unparsed
	FO string `json:"fo,omitempty"`
}

// Validate enforces the invariants of a published policy, most notably
// that pct is a percentage.
func (p PolicyPublished) Validate() error {
	return validateStruct("policy_published", p)
}

// PolicyOverrideReason is passed through from policy_evaluated/reason
type PolicyOverrideReason struct {
	Type    string `json:"type"`
	Comment string `json:"comment,omitempty"`
}

// PolicyEvaluated is the result of applying the policy to a record
type PolicyEvaluated struct {
	Disposition PolicyType             `json:"disposition" validate:"required,oneof=none quarantine reject"`
	DKIM        AuthResultType         `json:"dkim" validate:"required,oneof=none pass fail policy neutral temperror permerror softfail"`
	SPF         AuthResultType         `json:"spf" validate:"required,oneof=none pass fail policy neutral temperror permerror softfail"`
	Reasons     []PolicyOverrideReason `json:"reasons,omitempty"`
}

// Identifier holds the domains a record was evaluated for
type Identifier struct {
	HeaderFrom   string `json:"header_from" validate:"required"`
	EnvelopeTo   string `json:"envelope_to,omitempty"`
	EnvelopeFrom string `json:"envelope_from,omitempty"`
}

type DKIMAuthResult struct {
	Domain      string         `json:"domain" validate:"required"`
	Result      AuthResultType `json:"result" validate:"required,oneof=none pass fail policy neutral temperror permerror softfail"`
	Selector    string         `json:"selector,omitempty"`
	HumanResult string         `json:"human_result,omitempty"`
}

type SPFAuthResult struct {
	Domain      string         `json:"domain" validate:"required"`
	Result      AuthResultType `json:"result" validate:"required,oneof=none pass fail policy neutral temperror permerror softfail"`
	Scope       SPFScope       `json:"scope,omitempty" validate:"omitempty,oneof=helo mfrom"`
	HumanResult string         `json:"human_result,omitempty"`
}

// AuthResults keeps the raw DKIM and SPF results in document order
type AuthResults struct {
	DKIM []DKIMAuthResult `json:"dkim" validate:"dive"`
	SPF  []SPFAuthResult  `json:"spf" validate:"dive"`
}

// Record is a single row of the report
type Record struct {
	SourceIP        string          `json:"source_ip" validate:"required"`
	Count           int             `json:"count" validate:"gte=0"`
	PolicyEvaluated PolicyEvaluated `json:"policy_evaluated"`
	Identifiers     Identifier      `json:"identifiers"`
	AuthResults     AuthResults     `json:"auth_results"`
}

func (r Record) Validate(locator string) error {
	return validateStruct(locator, r)
}

// Report is a parsed DMARC aggregate report.
// https://tools.ietf.org/html/rfc7489#appendix-C
type Report struct {
	Version         string          `json:"version,omitempty"`
	ReportMetadata  ReportMetadata  `json:"report_metadata"`
	PolicyPublished PolicyPublished `json:"policy_published"`
	Records         []Record        `json:"records"`
}

func (r *Report) OrgName() string {
	return r.ReportMetadata.OrgName
}

func (r *Report) Email() string {
	return r.ReportMetadata.Email
}

func (r *Report) ReportID() string {
	return r.ReportMetadata.ReportID
}

// DateRange returns the begin and end timestamps of the reporting period
func (r *Report) DateRange() (int64, int64) {
	return r.ReportMetadata.DateRange.Begin, r.ReportMetadata.DateRange.End
}

// Domain returns the domain the published policy belongs to
func (r *Report) Domain() string {
	return r.PolicyPublished.Domain
}
