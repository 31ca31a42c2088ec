package anomaly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ComputeBaseline calculates the mean, sample standard deviation (N-1) and anomaly
// threshold of the volumes in series.
//
// Every point contributes, including days inside pre-event windows, so the baseline
// includes the anomalies it is later used to find.
func ComputeBaseline(series []TimePoint, zMultiplier float64) (Baseline, error) {
	if err := validateMultiplier(zMultiplier); err != nil {
		return Baseline{}, err
	}
	if len(series) < MinSeriesLength {
		return Baseline{}, insufficientData(len(series))
	}

	volumes, err := volumesOf(series)
	if err != nil {
		return Baseline{}, err
	}

	// Identical volumes: report an exact zero rather than rounding noise from the
	// two-pass variance.
	if floats.Min(volumes) == floats.Max(volumes) {
		return Baseline{
			Mean:        volumes[0],
			StdDev:      0,
			ZMultiplier: zMultiplier,
			Threshold:   volumes[0],
			Count:       len(volumes),
			Degenerate:  true,
		}, nil
	}

	mean, stdDev := stat.MeanStdDev(volumes, nil)
	threshold := mean + zMultiplier*stdDev
	if !finite(mean) || !finite(stdDev) || !finite(threshold) {
		return Baseline{}, fmt.Errorf("%w: volumes too large for a finite baseline (mean %v, stddev %v)", ErrInvalidSeries, mean, stdDev)
	}

	return Baseline{
		Mean:        mean,
		StdDev:      stdDev,
		ZMultiplier: zMultiplier,
		Threshold:   threshold,
		Count:       len(volumes),
		Degenerate:  stdDev == 0,
	}, nil
}

// volumesOf extracts the volume column, rejecting negative or non-finite values
func volumesOf(series []TimePoint) ([]float64, error) {
	volumes := make([]float64, len(series))
	for i, p := range series {
		if err := checkVolume(i, p.Volume); err != nil {
			return nil, err
		}
		volumes[i] = p.Volume
	}
	return volumes, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validateMultiplier(z float64) error {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return &ParamError{Name: "z_multiplier", Value: z, Reason: "must be a finite number"}
	}
	if z <= 0 {
		return &ParamError{Name: "z_multiplier", Value: z, Reason: "must be greater than 0"}
	}
	return nil
}

// validateBaseline checks a caller-supplied baseline before it is trusted
func validateBaseline(b Baseline) error {
	if err := validateMultiplier(b.ZMultiplier); err != nil {
		return err
	}
	if math.IsNaN(b.Mean) || math.IsInf(b.Mean, 0) {
		return &ParamError{Name: "baseline.mean", Value: b.Mean, Reason: "must be a finite number"}
	}
	if math.IsNaN(b.StdDev) || b.StdDev < 0 {
		return &ParamError{Name: "baseline.std_dev", Value: b.StdDev, Reason: "must be >= 0"}
	}
	return nil
}
