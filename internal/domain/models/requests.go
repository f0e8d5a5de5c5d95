package models

// ThemesRequest is the query of GET /api/themes.
type ThemesRequest struct {
	Refresh bool `query:"refresh"`
}

// ThemeRequest addresses one theme by name.
type ThemeRequest struct {
	Name string `param:"name" validate:"required"`
}

// ThemeHistoryRequest is the query of GET /api/themes/:name/history.
type ThemeHistoryRequest struct {
	Name   string `param:"name" validate:"required"`
	Period string `query:"period" default:"today" validate:"oneof=today 1d 7d 30d"`
}

// CacheDebug is the payload of the cache inspection endpoint.
type CacheDebug struct {
	Count         int             `json:"count"`
	FeedConnected bool            `json:"feedConnected"`
	Ticks         map[string]Tick `json:"ticks"`
}
