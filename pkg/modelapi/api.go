// Package modelapi serves registered graph models, execution history and
// in-flight executions over a read-only HTTP API. Controllers are wiring
// only: they call a reactor and encode what it returns.
package modelapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/petrijr/reactor/internal/persistence"
	"github.com/petrijr/reactor/pkg/api"
)

const (
	APIRoot = "/api/v1/"

	mimeYAML = "application/x-yaml"
)

// ErrExecutionNotFound is reported when no history exists for an execution id.
var ErrExecutionNotFound = errors.New("execution not found")

// Source is what the API reads from. A reactor satisfies it.
type Source interface {
	api.ModelReader
	api.HistoryReader
	api.StatusReader
}

// Error is the body of every non-2xx response.
type Error struct {
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus"`
}

// API provides controllers for the endpoints it registers with a router.
type API struct {
	src    Source
	logger *slog.Logger
	// --
	echo *echo.Echo
}

// NewAPI creates an API over src and registers all of its routes.
func NewAPI(src Source, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{
		src:    src,
		logger: logger,
		echo:   echo.New(),
	}
	a.echo.HideBanner = true

	// //////////////////////////////////////////////////////////////////////
	// Routes
	// //////////////////////////////////////////////////////////////////////
	// Names of all stored graph models.
	a.echo.GET(APIRoot+"graphs", a.listGraphsHandler)
	// One graph model, as JSON or, with ?format=yaml, YAML.
	a.echo.GET(APIRoot+"graphs/:name", a.getGraphHandler)
	// Executions whose chain has not completed.
	a.echo.GET(APIRoot+"executions", a.runningHandler)
	// History of one execution.
	a.echo.GET(APIRoot+"executions/:id/events", a.eventsHandler)

	// //////////////////////////////////////////////////////////////////////
	// Middleware
	// //////////////////////////////////////////////////////////////////////
	a.echo.Use(middleware.Recover())
	a.echo.Use(a.logRequests)

	return a
}

// Use adds middleware to the router.
func (a *API) Use(mw ...echo.MiddlewareFunc) {
	a.echo.Use(mw...)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.echo.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done, then shuts the server down.
func (a *API) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		errc <- a.echo.Start(addr)
	}()
	a.logger.Info("api_listening", slog.String("address", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.echo.Server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("api_shutdown_failed", slog.Any("error", err))
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		a.logger.Debug("api_request",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Int("status", c.Response().Status),
			slog.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// ============================== CONTROLLERS ============================== //

// GET <APIRoot>/graphs
func (a *API) listGraphsHandler(c echo.Context) error {
	names, err := a.src.ListModels(c.Request().Context())
	if err != nil {
		return handleError(err, c)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, names)
}

// GET <APIRoot>/graphs/{name}[?format=yaml]
func (a *API) getGraphHandler(c echo.Context) error {
	m, err := a.src.GetModel(c.Request().Context(), c.Param("name"))
	if err != nil {
		return handleError(err, c)
	}

	switch c.QueryParam("format") {
	case "", "json":
		return c.JSON(http.StatusOK, m)
	case "yaml":
		out, err := m.ToYAML()
		if err != nil {
			return handleError(err, c)
		}
		return c.Blob(http.StatusOK, mimeYAML, out)
	default:
		return c.JSON(http.StatusBadRequest, Error{
			Message:    "format must be json or yaml",
			HTTPStatus: http.StatusBadRequest,
		})
	}
}

// GET <APIRoot>/executions
func (a *API) runningHandler(c echo.Context) error {
	running := a.src.Running()
	if running == nil {
		running = []api.ExecutionStatus{}
	}
	return c.JSON(http.StatusOK, running)
}

// GET <APIRoot>/executions/{id}/events
func (a *API) eventsHandler(c echo.Context) error {
	id := c.Param("id")
	events, err := a.src.ListEvents(c.Request().Context(), id)
	if err != nil {
		return handleError(err, c)
	}
	if len(events) == 0 {
		return handleError(ErrExecutionNotFound, c)
	}
	return c.JSON(http.StatusOK, events)
}

// ------------------------------------------------------------------------- //

func handleError(err error, c echo.Context) error {
	ret := Error{
		Message:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
	}
	if errors.Is(err, persistence.ErrModelNotFound) || errors.Is(err, ErrExecutionNotFound) {
		ret.HTTPStatus = http.StatusNotFound
	}
	return c.JSON(ret.HTTPStatus, ret)
}
