package models

import (
	"fmt"
	"time"
)

// HistorySample is a compact snapshot of one theme aggregate.
type HistorySample struct {
	Theme         string    `json:"theme"`
	AvgChangeRate float64   `json:"avgChangeRate"`
	TopStockName  string    `json:"topStockName"`
	TopStockRate  float64   `json:"topStockRate"`
	Timestamp     time.Time `json:"timestamp"`
}

// SampleFrom converts an aggregate into a history sample taken at ts.
func SampleFrom(a ThemeAggregate, ts time.Time) HistorySample {
	s := HistorySample{Theme: a.Name, AvgChangeRate: a.AvgChangeRate, Timestamp: ts}
	if top, ok := a.Leader(); ok {
		s.TopStockName = top.Name
		s.TopStockRate = top.ChangeRate
	}
	return s
}

// HistoryPeriod selects which history tier answers a range query.
type HistoryPeriod string

const (
	PeriodToday HistoryPeriod = "today"
	Period1D    HistoryPeriod = "1d"
	Period7D    HistoryPeriod = "7d"
	Period30D   HistoryPeriod = "30d"
)

// Duration returns the look-back window of a durable period.
func (p HistoryPeriod) Duration() (time.Duration, error) {
	switch p {
	case Period1D:
		return 24 * time.Hour, nil
	case Period7D:
		return 7 * 24 * time.Hour, nil
	case Period30D:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
	}
}
