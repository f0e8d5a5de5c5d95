package models

import "time"

// Theme is a named, ordered group of instruments.
type Theme struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Members  []string `json:"members" yaml:"members"`
}

// ThemeAggregate is the per-theme projection over the price cache.
// Stocks are sorted by traded value descending; index 0 is the leader.
type ThemeAggregate struct {
	Name          string    `json:"name"`
	AvgChangeRate float64   `json:"avgChangeRate"`
	Stocks        []Tick    `json:"stocks"`
	TopGainer     *Tick     `json:"topGainer,omitempty"`
	TopLoser      *Tick     `json:"topLoser,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Leader returns the traded-value leader, if any member is priced.
func (a ThemeAggregate) Leader() (Tick, bool) {
	if len(a.Stocks) == 0 {
		return Tick{}, false
	}
	return a.Stocks[0], true
}

// ThemeSnapshot is the payload returned by the query surface and pushed to subscribers.
type ThemeSnapshot struct {
	Themes                []ThemeAggregate `json:"themes"`
	MarketStatus          MarketStatusInfo `json:"marketStatus"`
	LastUpdateTime        time.Time        `json:"lastUpdateTime"`
	CachedInstrumentCount int              `json:"cachedInstrumentCount"`
}
