package anomaly

import (
	"math"
)

// ValidateSeries checks that series is ordered strictly ascending by time and that
// every volume is a finite non-negative number.
func ValidateSeries(series []TimePoint) error {
	for i, p := range series {
		if p.Time.IsZero() {
			return &ValidationError{Index: i, Field: "time", Message: "timestamp is missing"}
		}
		if err := checkVolume(i, p.Volume); err != nil {
			return err
		}
		if i == 0 {
			continue
		}

		prev := series[i-1].Time
		switch {
		case p.Time.Equal(prev):
			return &ValidationError{Index: i, Field: "time", Message: "duplicate timestamp " + p.Time.Format(timeLayout)}
		case p.Time.Before(prev):
			return &ValidationError{Index: i, Field: "time", Message: "series is not sorted ascending"}
		}
	}
	return nil
}

func checkVolume(i int, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Index: i, Field: "volume", Message: "volume is not a finite number"}
	}
	if v < 0 {
		return &ValidationError{Index: i, Field: "volume", Message: "volume is negative"}
	}
	return nil
}

const timeLayout = "2006-01-02 15:04:05"
