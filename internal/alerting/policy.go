package alerting

import "stressguard/internal/models"

// Classification is the alert decision for a single score.
type Classification struct {
	Severity        models.Severity `json:"severity"`
	EscalationLevel int             `json:"escalation_level"`
	ShouldAlert     bool            `json:"should_alert"`
}

type tier struct {
	min        int
	severity   models.Severity
	escalation int
}

// tiers are ordered highest first and must be evaluated top-down.
var tiers = []tier{
	{90, models.SeverityCritical, 3},
	{80, models.SeverityHigh, 2},
	{70, models.SeverityMedium, 1},
	{0, models.SeverityLow, 1},
}

// Policy classifies scores. Threshold is the alert-creation cutoff and is
// independent from the severity tiers.
type Policy struct {
	Threshold int
}

func NewPolicy(threshold int) Policy {
	return Policy{Threshold: threshold}
}

func (p Policy) Classify(score int) Classification {
	c := Classification{Severity: models.SeverityLow, EscalationLevel: 1}
	for _, t := range tiers {
		if score >= t.min {
			c.Severity = t.severity
			c.EscalationLevel = t.escalation
			break
		}
	}
	c.ShouldAlert = score >= p.Threshold
	return c
}

// Rank orders severities for comparison; unknown values rank below LOW.
func Rank(s models.Severity) int {
	switch s {
	case models.SeverityLow:
		return 1
	case models.SeverityMedium:
		return 2
	case models.SeverityHigh:
		return 3
	case models.SeverityCritical:
		return 4
	}
	return 0
}
