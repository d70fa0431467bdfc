package expiry

const (
	// DefaultCardSoonDays is the expiring-soon window of the account cards.
	DefaultCardSoonDays = 5
	// DefaultReportSoonDays is the expiring-soon window of the status report.
	DefaultReportSoonDays = 7
)

// Policy is a named expiring-soon threshold.
type Policy struct {
	Name     string
	SoonDays int
}

// NewPolicy validates and builds a policy.
func NewPolicy(name string, soonDays int) (Policy, error) {
	if soonDays < 0 {
		return Policy{}, ErrNegativeThreshold
	}
	return Policy{Name: name, SoonDays: soonDays}, nil
}

// CardPolicy returns the account-card policy with the given threshold.
func CardPolicy(soonDays int) Policy {
	return Policy{Name: "card", SoonDays: soonDays}
}

// ReportPolicy returns the status-report policy with the given threshold.
func ReportPolicy(soonDays int) Policy {
	return Policy{Name: "report", SoonDays: soonDays}
}

// Classify applies the policy threshold.
func (p Policy) Classify(days int) Status {
	return ClassifyStatus(days, p.SoonDays)
}
