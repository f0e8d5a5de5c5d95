package models

// SessionStatus classifies the trading session at a point in time.
type SessionStatus string

const (
	SessionPreMarket  SessionStatus = "pre_market"
	SessionRegular    SessionStatus = "regular"
	SessionPostMarket SessionStatus = "post_market"
	SessionClosed     SessionStatus = "closed"
)

// MarketStatusInfo is derived from wall-clock time on every call.
// IsOpen spans pre-market through post-market.
type MarketStatusInfo struct {
	Status    SessionStatus `json:"status"`
	Label     string        `json:"label"`
	IsOpen    bool          `json:"isOpen"`
	NextOpen  string        `json:"nextOpen,omitempty"`
	CloseTime string        `json:"closeTime,omitempty"`
}
