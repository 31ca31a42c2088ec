package anomaly

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Summarize lists every flagged point in ascending time order, whatever the order
// of points.
func Summarize(points []AnnotatedPoint, baseline Baseline) AnomalySummary {
	details := make([]AnomalyDetail, 0)
	for _, p := range points {
		if !p.IsAnomaly {
			continue
		}
		details = append(details, AnomalyDetail{
			Time:                p.Time,
			Volume:              p.Volume,
			ZScore:              p.ZScore,
			AnomalyScore:        p.AnomalyScore,
			PercentAboveAverage: PercentAboveAverage(p.Volume, baseline.Mean),
			Severity:            SeverityFor(p.ZScore),
		})
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].Time.Before(details[j].Time)
	})

	return AnomalySummary{
		TotalAnomalies: len(details),
		Details:        details,
	}
}

// PercentAboveAverage returns how far volume lies above mean, in percent.
// A zero mean yields 0.
func PercentAboveAverage(volume, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return (volume - mean) / mean * 100
}

// GetStatistics describes series and counts the flags in points.
func GetStatistics(series []TimePoint, baseline Baseline, points []AnnotatedPoint) Statistics {
	stats := Statistics{
		TotalDays: len(series),
		Mean:      baseline.Mean,
		StdDev:    baseline.StdDev,
		Threshold: baseline.Threshold,
	}

	if len(series) > 0 {
		volumes := make([]float64, len(series))
		for i, p := range series {
			volumes[i] = p.Volume
		}
		stats.Min = floats.Min(volumes)
		stats.Max = floats.Max(volumes)
		stats.Median = median(volumes)
	}

	for _, p := range points {
		if p.IsAnomaly {
			stats.AnomalyCount++
		}
		if p.IsEventDay {
			stats.EventDayCount++
		}
	}

	return stats
}

// median sorts values in place and averages the two middle values for even lengths
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
