package util

import (
	"strconv"
	"time"
)

// KST is the fixed UTC+9 zone the exchange calendar runs on. A fixed offset
// avoids depending on the host tzdata.
var KST = time.FixedZone("KST", 9*3600)

// InKST converts t into the exchange zone.
func InKST(t time.Time) time.Time { return t.In(KST) }

// DateKey returns the KST calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string { return t.In(KST).Format("2006-01-02") }

// MinuteOfDay returns hours*60+minutes of t in KST.
func MinuteOfDay(t time.Time) int {
	k := t.In(KST)
	return k.Hour()*60 + k.Minute()
}

// ParseFloatDefault parses a decimal string or returns def on empty/invalid input.
func ParseFloatDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// ParseInt64Default parses an integer string or returns def on empty/invalid input.
func ParseInt64Default(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
