package dmarc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(ip string, count int, disposition PolicyType, dkim, spf AuthResultType) Record {
	return Record{
		SourceIP: ip,
		Count:    count,
		PolicyEvaluated: PolicyEvaluated{
			Disposition: disposition,
			DKIM:        dkim,
			SPF:         spf,
		},
		Identifiers: Identifier{HeaderFrom: "example.com"},
	}
}

func TestSummaryStats(t *testing.T) {
	t.Parallel()

	report := &Report{
		ReportMetadata: ReportMetadata{DateRange: DateRange{Begin: 0, End: 86399}},
		Records: []Record{
			record("1.1.1.1", 10, PolicyNone, AuthPass, AuthFail),
			record("1.1.1.1", 5, PolicyQuarantine, AuthFail, AuthFail),
		},
	}

	s := report.SummaryStats()
	assert.Equal(t, 15, s.TotalMessages)
	assert.Equal(t, 1, s.UniqueSources)
	assert.InDelta(t, 10.0/15.0, s.DKIMPassRate, 1e-9)
	assert.InDelta(t, 0.0, s.SPFPassRate, 1e-9)
	assert.Equal(t, map[PolicyType]int{PolicyNone: 10, PolicyQuarantine: 5}, s.Dispositions)
	assert.Equal(t, "1970-01-01 00:00:00 UTC to 1970-01-01 23:59:59 UTC", s.ReportPeriod)
}

func TestSummaryStatsNoRecords(t *testing.T) {
	t.Parallel()

	report := &Report{}
	s := report.SummaryStats()
	assert.Equal(t, 0, s.TotalMessages)
	assert.Equal(t, 0, s.UniqueSources)
	assert.Zero(t, s.DKIMPassRate)
	assert.Zero(t, s.SPFPassRate)
	assert.Empty(t, s.Dispositions)
}

func TestSummaryStatsZeroCount(t *testing.T) {
	t.Parallel()

	report := &Report{Records: []Record{record("192.0.2.1", 0, PolicyReject, AuthPass, AuthPass)}}
	s := report.SummaryStats()
	assert.Equal(t, 0, s.TotalMessages)
	assert.Equal(t, 1, s.UniqueSources)
	assert.Zero(t, s.DKIMPassRate)
	assert.Equal(t, map[PolicyType]int{PolicyReject: 0}, s.Dispositions)
}

func TestSummaryStatsIsRepeatable(t *testing.T) {
	t.Parallel()

	report, err := ParseFile(fixtureAs(t, "dmarc-sample-3.xml", "xml"))
	require.NoError(t, err)

	first := report.SummaryStats()
	second := report.SummaryStats()
	assert.Equal(t, first, second)

	assert.Equal(t, 10, first.TotalMessages)
	assert.Equal(t, 2, first.UniqueSources)
	assert.InDelta(t, 0.2, first.DKIMPassRate, 1e-9)
	assert.InDelta(t, 0.9, first.SPFPassRate, 1e-9)
	assert.Equal(t, map[PolicyType]int{PolicyNone: 10}, first.Dispositions)
}
