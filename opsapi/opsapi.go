// Package opsapi is the internal HTTP listener for operating the selector:
// triggering the current window and inspecting its state. It does not serve
// selections to readers.
package opsapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"go.readwell.dev/highlights/selector"
)

const DefaultListen = "127.0.0.1:8095"

type Server struct {
	sl  *selector.Selector
	log *slog.Logger
	e   *echo.Echo
}

func New(sl *selector.Selector, log *slog.Logger) *Server {
	srv := &Server{sl: sl, log: log.WithGroup("ops")}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(otelecho.Middleware("highlights-ops"))
	e.Use(slogecho.New(srv.log))
	e.Use(middleware.Recover())

	e.POST("/trigger", srv.trigger)
	e.GET("/status", srv.status)
	e.GET("/history", srv.history)

	srv.e = e
	return srv
}

func (srv *Server) Handler() http.Handler {
	return srv.e
}

// ListenAndServe serves on listen until ctx is cancelled.
func (srv *Server) ListenAndServe(ctx context.Context, listen string) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.e.Shutdown(shutdownCtx); err != nil {
			srv.log.Warn("ops listener shutdown", "err", err)
		}
	}()

	srv.log.Info("ops listener starting", "listen", listen)
	err := srv.e.Start(listen)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type triggerResponse struct {
	OK        bool   `json:"ok"`
	WindowKey string `json:"windowKey"`
	Size      int    `json:"size"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (srv *Server) trigger(c echo.Context) error {
	ctx := c.Request().Context()

	sel, win, err := srv.sl.EnsureSelection(ctx)
	if err != nil {
		srv.log.ErrorContext(ctx, "trigger failed", "key", win.Key, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not ensure selection"})
	}

	return c.JSON(http.StatusOK, triggerResponse{
		OK:        true,
		WindowKey: win.Key,
		Size:      sel.Size(),
	})
}

func (srv *Server) status(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := srv.sl.Status(ctx)
	if err != nil {
		srv.log.ErrorContext(ctx, "status failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not read status"})
	}
	return c.JSON(http.StatusOK, status)
}

func (srv *Server) history(c echo.Context) error {
	ctx := c.Request().Context()

	var q struct {
		Limit int `query:"limit"`
	}
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	sels, err := srv.sl.History(ctx, q.Limit)
	if err != nil {
		srv.log.ErrorContext(ctx, "history failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not list selections"})
	}
	return c.JSON(http.StatusOK, sels)
}
