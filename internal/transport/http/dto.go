package http

import (
	"fmt"
	"time"

	"finsight/internal/anomaly"
	"finsight/internal/events"
	"finsight/internal/services"
)

// PointRequest is one bar of a caller supplied series.
type PointRequest struct {
	Time   string  `json:"time" validate:"required"`
	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high,omitempty"`
	Low    float64 `json:"low,omitempty"`
	Close  float64 `json:"close,omitempty"`
	Volume float64 `json:"volume" validate:"gte=0"`
}

// AnalysisOptionsRequest carries the fields shared by single and batch requests.
type AnalysisOptionsRequest struct {
	Interval           string   `json:"interval,omitempty" validate:"omitempty,max=16"`
	Start              string   `json:"start,omitempty" validate:"omitempty,isodate"`
	End                string   `json:"end,omitempty" validate:"omitempty,isodate"`
	Full               bool     `json:"full,omitempty"`
	Events             []string `json:"events,omitempty" validate:"max=1000"`
	EventsText         string   `json:"events_text,omitempty" validate:"max=65536"`
	ZMultiplier        float64  `json:"z_multiplier,omitempty" validate:"omitempty,gt=0"`
	PreEventWindowDays int      `json:"pre_event_window_days,omitempty" validate:"omitempty,gte=1"`
}

// AnalysisRequest is the body of POST /api/analyses.
type AnalysisRequest struct {
	AnalysisOptionsRequest
	Symbol string         `json:"symbol,omitempty" validate:"omitempty,symbol"`
	Source string         `json:"source,omitempty" validate:"max=200"`
	Points []PointRequest `json:"points,omitempty" validate:"omitempty,max=100000,dive"`
}

// BatchRequest is the body of POST /api/analyses/batch.
type BatchRequest struct {
	AnalysisOptionsRequest
	Symbols []string `json:"symbols" validate:"required,min=1,dive,symbol"`
}

func (o AnalysisOptionsRequest) toService() (services.AnalysisRequest, error) {
	req := services.AnalysisRequest{
		Interval:           o.Interval,
		Full:               o.Full,
		Events:             o.Events,
		EventsText:         o.EventsText,
		ZMultiplier:        o.ZMultiplier,
		PreEventWindowDays: o.PreEventWindowDays,
	}

	var err error
	if req.Start, err = parseDate("start", o.Start); err != nil {
		return req, err
	}
	if req.End, err = parseDate("end", o.End); err != nil {
		return req, err
	}
	return req, nil
}

func (a AnalysisRequest) toService() (services.AnalysisRequest, error) {
	req, err := a.AnalysisOptionsRequest.toService()
	if err != nil {
		return req, err
	}
	req.Symbol = a.Symbol
	req.Source = a.Source

	if len(a.Points) > 0 {
		req.Points = make([]anomaly.TimePoint, len(a.Points))
		for i, p := range a.Points {
			t, err := events.ParseTime(p.Time)
			if err != nil {
				return req, &anomaly.ValidationError{Index: i, Field: "time", Message: err.Error()}
			}
			req.Points[i] = anomaly.TimePoint{
				Time:   t,
				Open:   p.Open,
				High:   p.High,
				Low:    p.Low,
				Close:  p.Close,
				Volume: p.Volume,
			}
		}
	}
	return req, nil
}

func (b BatchRequest) toService() (services.BatchRequest, error) {
	template, err := b.AnalysisOptionsRequest.toService()
	if err != nil {
		return services.BatchRequest{}, err
	}
	return services.BatchRequest{Symbols: b.Symbols, Template: template}, nil
}

func parseDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &anomaly.ParamError{Name: name, Value: s, Reason: fmt.Sprintf("expected YYYY-MM-DD: %v", err)}
	}
	return t, nil
}
