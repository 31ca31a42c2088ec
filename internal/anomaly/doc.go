// Package anomaly detects unusual trading volume in the days leading up to known
// corporate events.
//
// The package is a set of pure functions over an ordered volume series. Nothing is
// cached between calls and nothing is logged; callers own every input and receive
// fresh outputs.
//
// # Pipeline
//
//  1. ComputeBaseline: mean and sample standard deviation of volume over the whole
//     series, and a threshold of mean + multiplier × stddev.
//  2. DetectAnomalies: for each event mark, scans the window
//     [event − N days, event − 1 day] and flags days whose volume is strictly above
//     the threshold.
//  3. Summarize and GetStatistics: read-only views over the annotated series.
//
// # Usage Example
//
//	baseline, err := anomaly.ComputeBaseline(series, 3.0)
//	if err != nil {
//	    return err
//	}
//
//	detection, err := anomaly.DetectAnomalies(series, &baseline, marks, anomaly.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//
//	summary := anomaly.Summarize(detection.Points, detection.Baseline)
//	stats := anomaly.GetStatistics(series, detection.Baseline, detection.Points)
//
// # Degenerate variance
//
// A series whose volumes are all identical has a standard deviation of zero. This is
// not an error: the threshold collapses to the mean, every z-score is reported as 0,
// and no day can ever be flagged because the comparison is strict.
package anomaly
