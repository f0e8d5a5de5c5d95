package http

import "github.com/labstack/echo/v4"

// Handler is one route group of the query and push surface.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
