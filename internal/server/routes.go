package server

import (
	"chatgraph/internal/server/middleware"
	"chatgraph/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	e.POST("/query", routes.QueryHandler, middleware.AuthMiddleware)
	e.POST("/webhook", routes.WebhookHandler, middleware.AuthMiddleware)
}
