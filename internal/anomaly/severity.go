package anomaly

// Severity buckets a z-score for presentation.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// SeverityFor maps a z-score to a severity bucket.
func SeverityFor(z float64) Severity {
	switch {
	case z < 2:
		return SeverityLow
	case z < 3:
		return SeverityMedium
	case z < 4:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
