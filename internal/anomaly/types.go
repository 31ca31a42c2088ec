package anomaly

import (
	"time"
)

const (
	// DefaultZMultiplier is the number of standard deviations above the mean
	// a volume must exceed to be considered anomalous.
	DefaultZMultiplier = 3.0

	// DefaultPreEventWindowDays is the number of calendar days before an event
	// that are scanned for anomalies.
	DefaultPreEventWindowDays = 3

	// MinSeriesLength is the minimum number of points needed for a sample
	// standard deviation.
	MinSeriesLength = 2
)

// TimePoint is a single trading interval's observation.
// Prices are carried through for presentation and are not used by detection.
type TimePoint struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Baseline holds the volume statistics a series is judged against.
type Baseline struct {
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	ZMultiplier float64 `json:"z_multiplier"`
	Threshold   float64 `json:"threshold"`
	Count       int     `json:"count"`

	// Degenerate is true when StdDev is zero. Z-scores are then reported as 0.
	Degenerate bool `json:"degenerate"`
}

// ZScore returns how many standard deviations volume lies from the mean.
// It returns 0 for a degenerate baseline.
func (b Baseline) ZScore(volume float64) float64 {
	if b.Degenerate || b.StdDev == 0 {
		return 0
	}
	return (volume - b.Mean) / b.StdDev
}

// Exceeds reports whether volume is strictly above the threshold.
func (b Baseline) Exceeds(volume float64) bool {
	return volume > b.Threshold
}

// EventMark is a timestamp the caller asserts to be a major event.
type EventMark struct {
	Time  time.Time `json:"time"`
	Label string    `json:"label,omitempty"`
}

// RejectReason explains why an event mark was not used.
type RejectReason string

const (
	// RejectOutOfRange means the mark lies outside the series' first and last timestamps.
	RejectOutOfRange RejectReason = "out_of_range"
	// RejectUnparsable means the mark could not be turned into a timestamp.
	RejectUnparsable RejectReason = "unparsable"
)

// RejectedEvent records a single event mark that was discarded.
type RejectedEvent struct {
	Raw     string       `json:"raw,omitempty"`
	Time    time.Time    `json:"time,omitempty"`
	Label   string       `json:"label,omitempty"`
	Line    int          `json:"line,omitempty"`
	Reason  RejectReason `json:"reason"`
	Message string       `json:"message"`
}

// AnnotatedPoint is a TimePoint with the detection flags attached.
// AnomalyScore is zero unless IsAnomaly is true; ZScore is always populated.
type AnnotatedPoint struct {
	TimePoint
	IsAnomaly    bool    `json:"is_anomaly"`
	IsEventDay   bool    `json:"is_event_day"`
	ZScore       float64 `json:"z_score"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// Detection is the result of a single DetectAnomalies pass.
type Detection struct {
	Points   []AnnotatedPoint `json:"points"`
	Baseline Baseline         `json:"baseline"`
	Accepted []EventMark      `json:"accepted_events"`
	Rejected []RejectedEvent  `json:"rejected_events,omitempty"`
}

// AnomalyDetail describes one flagged day.
type AnomalyDetail struct {
	Time                time.Time `json:"date"`
	Volume              float64   `json:"volume"`
	ZScore              float64   `json:"z_score"`
	AnomalyScore        float64   `json:"anomaly_score"`
	PercentAboveAverage float64   `json:"percentage_above_avg"`
	Severity            Severity  `json:"severity"`
}

// AnomalySummary lists the flagged days in chronological order.
type AnomalySummary struct {
	TotalAnomalies int             `json:"total_anomalies"`
	Details        []AnomalyDetail `json:"details"`
}

// Statistics describes the whole series together with the detection counts.
type Statistics struct {
	TotalDays     int     `json:"total_days"`
	Mean          float64 `json:"average_volume"`
	StdDev        float64 `json:"std_deviation"`
	Min           float64 `json:"min_volume"`
	Max           float64 `json:"max_volume"`
	Median        float64 `json:"median_volume"`
	Threshold     float64 `json:"anomaly_threshold"`
	AnomalyCount  int     `json:"anomaly_count"`
	EventDayCount int     `json:"event_day_count"`
}
