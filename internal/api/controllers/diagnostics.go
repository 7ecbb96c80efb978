// Package controllers holds the handlers behind the diagnostics router.
// Scope is deliberately read-only: §1 keeps every *arr HTTP shim and
// search UI a non-goal, but the IPC parent proxy still needs a thin way
// to expose a running engine's status/queue/history over HTTP for an
// operator or a monitoring probe.
package controllers

import (
	"net/http"

	"github.com/datallboy/gonzb/internal/ipc"
	"github.com/labstack/echo/v5"
)

// DiagnosticsController serves read-only engine snapshots. Each entry
// in Engines is a named EngineClient (e.g. "nzb", "torrent") — either
// an in-process engine or a supervised child reached through Proxy.
type DiagnosticsController struct {
	Engines map[string]ipc.EngineClient
}

func (ctrl *DiagnosticsController) engine(c *echo.Context) (ipc.EngineClient, bool) {
	name := c.Param("engine")
	e, ok := ctrl.Engines[name]
	return e, ok
}

func (ctrl *DiagnosticsController) Status(c *echo.Context) error {
	e, ok := ctrl.engine(c)
	if !ok {
		return c.String(http.StatusNotFound, "unknown engine")
	}
	raw, err := e.Status(c.Request().Context())
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}

func (ctrl *DiagnosticsController) Queue(c *echo.Context) error {
	e, ok := ctrl.engine(c)
	if !ok {
		return c.String(http.StatusNotFound, "unknown engine")
	}
	raw, err := e.Queue(c.Request().Context())
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}

func (ctrl *DiagnosticsController) History(c *echo.Context) error {
	e, ok := ctrl.engine(c)
	if !ok {
		return c.String(http.StatusNotFound, "unknown engine")
	}
	raw, err := e.History(c.Request().Context())
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}
