package dmarc

// Summary holds statistics derived from the records of a report
type Summary struct {
	TotalMessages int                `json:"total_messages"`
	UniqueSources int                `json:"unique_sources"`
	DKIMPassRate  float64            `json:"dkim_pass_rate"`
	SPFPassRate   float64            `json:"spf_pass_rate"`
	Dispositions  map[PolicyType]int `json:"dispositions"`
	ReportPeriod  string             `json:"report_period"`
}

// SummaryStats computes the statistics from the records. Nothing is cached,
// every call walks the records again.
func (r *Report) SummaryStats() Summary {
	s := Summary{
		Dispositions: make(map[PolicyType]int),
		ReportPeriod: r.ReportMetadata.DateRange.String(),
	}

	sources := make(map[string]struct{})
	dkimPass := 0
	spfPass := 0
	for _, record := range r.Records {
		s.TotalMessages += record.Count
		sources[record.SourceIP] = struct{}{}
		if record.PolicyEvaluated.DKIM == AuthPass {
			dkimPass += record.Count
		}
		if record.PolicyEvaluated.SPF == AuthPass {
			spfPass += record.Count
		}
		s.Dispositions[record.PolicyEvaluated.Disposition] += record.Count
	}
	s.UniqueSources = len(sources)

	if s.TotalMessages > 0 {
		s.DKIMPassRate = float64(dkimPass) / float64(s.TotalMessages)
		s.SPFPassRate = float64(spfPass) / float64(s.TotalMessages)
	}
	return s
}
