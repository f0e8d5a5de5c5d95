// Package session classifies wall-clock time into exchange session states.
package session

import (
	"time"

	"ThemePulse/internal/domain/models"
	"ThemePulse/pkg/util"
)

// Session boundaries in minutes after KST midnight.
const (
	preMarketOpen   = 8*60 + 30
	regularOpen     = 9 * 60
	regularClose    = 15*60 + 30
	postMarketOpen  = 15*60 + 40
	postMarketClose = 16 * 60
)

// Status classifies now. Rules are evaluated in order and the first match wins.
func Status(now time.Time) models.MarketStatusInfo {
	k := util.InKST(now)
	if wd := k.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return closed("weekend", nextOpen(k))
	}

	m := util.MinuteOfDay(k)
	switch {
	case m < preMarketOpen:
		return closed("before open", "08:30")
	case m < regularOpen:
		return open(models.SessionPreMarket, "pre-market", "09:00")
	case m < regularClose:
		return open(models.SessionRegular, "regular session", "15:30")
	case m < postMarketOpen:
		return closed("closing auction", nextOpen(k))
	case m < postMarketClose:
		return open(models.SessionPostMarket, "post-market", "16:00")
	default:
		return closed("after hours", nextOpen(k))
	}
}

func open(s models.SessionStatus, label, closeAt string) models.MarketStatusInfo {
	return models.MarketStatusInfo{Status: s, Label: label, IsOpen: true, CloseTime: closeAt}
}

func closed(label, next string) models.MarketStatusInfo {
	return models.MarketStatusInfo{Status: models.SessionClosed, Label: label, NextOpen: next}
}

// nextOpen renders the next weekday pre-market open after k's date.
func nextOpen(k time.Time) string {
	d := k.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02") + " 08:30"
}

// Clock evaluates Status against an injectable time source.
type Clock struct {
	now func() time.Time
}

// NewClock returns a Clock on the system time.
func NewClock() *Clock { return &Clock{now: time.Now} }

// NewClockAt returns a Clock driven by now, for tests and replays.
func NewClockAt(now func() time.Time) *Clock { return &Clock{now: now} }

// Now returns the current instant of the clock's time source.
func (c *Clock) Now() time.Time { return c.now() }

// Status classifies the current instant into a market session.
func (c *Clock) Status() models.MarketStatusInfo { return Status(c.now()) }

// IsOpen reports whether any session from pre-market through post-market is active.
func (c *Clock) IsOpen() bool { return Status(c.now()).IsOpen }
