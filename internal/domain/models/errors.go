package models

import "errors"

var (
	ErrThemeNotFound  = errors.New("theme not found")
	ErrInvalidPeriod  = errors.New("invalid history period")
	ErrNotConnected   = errors.New("feed not connected")
	ErrUnknownChannel = errors.New("unknown push channel")
)
