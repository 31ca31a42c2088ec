package anomaly

import (
	"fmt"
	"sort"
	"time"
)

// Options controls a detection pass.
type Options struct {
	// PreEventWindowDays is how many calendar days before each event are scanned.
	PreEventWindowDays int `json:"pre_event_window_days"`
	// ZMultiplier is used only when no baseline is supplied.
	ZMultiplier float64 `json:"z_multiplier"`
}

// DefaultOptions returns the detection defaults (3-day window, 3σ threshold).
func DefaultOptions() Options {
	return Options{
		PreEventWindowDays: DefaultPreEventWindowDays,
		ZMultiplier:        DefaultZMultiplier,
	}
}

// Validate checks that the options are usable
func (o Options) Validate() error {
	if o.PreEventWindowDays < 1 {
		return &ParamError{Name: "pre_event_window_days", Value: o.PreEventWindowDays, Reason: "must be at least 1"}
	}
	return validateMultiplier(o.ZMultiplier)
}

// DetectAnomalies annotates series with event days and pre-event anomalies.
//
// When baseline is nil one is computed from series using opts.ZMultiplier. For every
// accepted mark, the point with exactly the mark's timestamp becomes an event day and
// every point in [mark − PreEventWindowDays days, mark − 1 day] whose volume is strictly
// above the threshold is flagged. Window membership does not depend on the mark
// matching a point, so a mark on a non-trading day still has its window scanned.
//
// Marks outside the series' time range, or with a zero timestamp, are returned in
// Detection.Rejected and contribute no flags. The result does not depend on the order
// of marks. series is never modified; each call returns freshly allocated points.
func DetectAnomalies(series []TimePoint, baseline *Baseline, marks []EventMark, opts Options) (*Detection, error) {
	if opts.PreEventWindowDays < 1 {
		return nil, &ParamError{Name: "pre_event_window_days", Value: opts.PreEventWindowDays, Reason: "must be at least 1"}
	}
	if len(series) < MinSeriesLength {
		return nil, insufficientData(len(series))
	}
	if err := ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("validate series: %w", err)
	}

	var b Baseline
	if baseline == nil {
		computed, err := ComputeBaseline(series, opts.ZMultiplier)
		if err != nil {
			return nil, err
		}
		b = computed
	} else {
		if err := validateBaseline(*baseline); err != nil {
			return nil, err
		}
		b = *baseline
	}

	points := annotate(series, b)
	first, last := series[0].Time, series[len(series)-1].Time

	detection := &Detection{
		Points:   points,
		Baseline: b,
		Accepted: make([]EventMark, 0, len(marks)),
	}

	for _, mark := range marks {
		if mark.Time.IsZero() {
			detection.Rejected = append(detection.Rejected, RejectedEvent{
				Label:   mark.Label,
				Reason:  RejectUnparsable,
				Message: "event has no timestamp",
			})
			continue
		}
		if mark.Time.Before(first) || mark.Time.After(last) {
			detection.Rejected = append(detection.Rejected, RejectedEvent{
				Time:   mark.Time,
				Label:  mark.Label,
				Reason: RejectOutOfRange,
				Message: fmt.Sprintf("date %s is outside data range (%s to %s)",
					mark.Time.Format("2006-01-02"), first.Format("2006-01-02"), last.Format("2006-01-02")),
			})
			continue
		}

		detection.Accepted = append(detection.Accepted, mark)

		if i, ok := indexOf(series, mark.Time); ok {
			points[i].IsEventDay = true
		}

		start, end := PreEventWindow(mark.Time, opts.PreEventWindowDays)
		for i := searchFrom(series, start); i < len(series) && !series[i].Time.After(end); i++ {
			if b.Exceeds(series[i].Volume) {
				points[i].IsAnomaly = true
				points[i].AnomalyScore = points[i].ZScore
			}
		}
	}

	return detection, nil
}

// PreEventWindow returns the inclusive bounds [event − days, event − 1 day].
func PreEventWindow(event time.Time, days int) (start, end time.Time) {
	return event.AddDate(0, 0, -days), event.AddDate(0, 0, -1)
}

// annotate copies series into cleared annotated points with z-scores filled in
func annotate(series []TimePoint, b Baseline) []AnnotatedPoint {
	points := make([]AnnotatedPoint, len(series))
	for i, p := range series {
		points[i] = AnnotatedPoint{
			TimePoint: p,
			ZScore:    b.ZScore(p.Volume),
		}
	}
	return points
}

// searchFrom returns the index of the first point at or after t
func searchFrom(series []TimePoint, t time.Time) int {
	return sort.Search(len(series), func(i int) bool {
		return !series[i].Time.Before(t)
	})
}

// indexOf finds the point whose timestamp equals t exactly
func indexOf(series []TimePoint, t time.Time) (int, bool) {
	i := searchFrom(series, t)
	if i < len(series) && series[i].Time.Equal(t) {
		return i, true
	}
	return -1, false
}
