package api

import (
	"github.com/datallboy/gonzb/internal/api/controllers"
	"github.com/datallboy/gonzb/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

// RegisterRoutes wires the read-only diagnostics surface the IPC parent
// exposes per §9: one route group per named engine ("nzb", "torrent"),
// each serving its status/queue/history snapshot as JSON. There is no
// Newznab search proxy here — §1 lists *arr HTTP shims as a non-goal.
func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	diag := &controllers.DiagnosticsController{Engines: app.Engines}

	g := e.Group("/engines/:engine")
	g.GET("/status", diag.Status)
	g.GET("/queue", diag.Queue)
	g.GET("/history", diag.History)
}
