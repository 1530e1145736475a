package dmarc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRangeString(t *testing.T) {
	t.Parallel()

	d := DateRange{Begin: 1704067200, End: 1704153599}
	assert.Equal(t, "2024-01-01 00:00:00 UTC to 2024-01-01 23:59:59 UTC", d.String())

	// begin after end is kept as is
	d = DateRange{Begin: 86400, End: 0}
	assert.Equal(t, "1970-01-02 00:00:00 UTC to 1970-01-01 00:00:00 UTC", d.String())
}

func validPolicy() PolicyPublished {
	return PolicyPublished{
		Domain: "example.com",
		P:      PolicyReject,
		SP:     PolicyNone,
		Pct:    100,
		ADKIM:  AlignRelaxed,
		ASPF:   AlignStrict,
	}
}

func TestPolicyPublishedValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validPolicy().Validate())

	for _, pct := range []int{0, 100} {
		p := validPolicy()
		p.Pct = pct
		require.NoError(t, p.Validate())
	}

	for _, pct := range []int{-1, 101} {
		p := validPolicy()
		p.Pct = pct
		err := p.Validate()
		var rangeErr *RangeViolationError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, &RangeViolationError{Field: "policy_published/pct", Value: int64(pct), Min: 0, Max: 100}, rangeErr)
	}

	p := validPolicy()
	p.P = "block"
	var invalidEnum *InvalidEnumError
	require.ErrorAs(t, p.Validate(), &invalidEnum)
	assert.Equal(t, "policy_published/p", invalidEnum.Field)

	p = validPolicy()
	p.Domain = ""
	var missing *MissingFieldError
	require.ErrorAs(t, p.Validate(), &missing)
	assert.Equal(t, "policy_published/domain", missing.Locator)
}

func TestRecordValidate(t *testing.T) {
	t.Parallel()

	r := record("192.0.2.1", 1, PolicyNone, AuthPass, AuthPass)
	r.AuthResults.SPF = []SPFAuthResult{{Domain: "example.com", Result: AuthPass, Scope: "other"}}

	var invalidEnum *InvalidEnumError
	require.ErrorAs(t, r.Validate("record[1]"), &invalidEnum)
	assert.Equal(t, "record[1]/auth_results/spf[0]/scope", invalidEnum.Field)
	assert.Equal(t, []string{"helo", "mfrom"}, invalidEnum.Allowed)

	r.AuthResults.SPF[0].Scope = SPFScopeHelo
	require.NoError(t, r.Validate("record[1]"))
}

func TestReportMetadataValidate(t *testing.T) {
	t.Parallel()

	m := ReportMetadata{OrgName: "example.net", Email: "dmarc@example.net"}
	var missing *MissingFieldError
	require.ErrorAs(t, m.Validate(), &missing)
	assert.Equal(t, "report_metadata/report_id", missing.Locator)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `unsupported file type ".txt"`, (&UnsupportedFileTypeError{Extension: ".txt"}).Error())
	assert.Equal(t, "missing required field policy_published/p", (&MissingFieldError{Locator: "policy_published/p"}).Error())
	assert.Equal(t, `invalid value "x" for policy_published/adkim, must be one of r, s`,
		(&InvalidEnumError{Field: "policy_published/adkim", Raw: "x", Allowed: []string{"r", "s"}}).Error())
	assert.Equal(t, "policy_published/pct must be between 0 and 100, got 101",
		(&RangeViolationError{Field: "policy_published/pct", Value: 101, Min: 0, Max: 100}).Error())
}
