package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/core"
	"github.com/benvon/chronos-console/internal/sinks/sqlite"
)

// Response represents a standard API response
type Response struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// Journal reads back archived snapshots and actions
type Journal interface {
	Recent(ctx context.Context, docType string, limit int) ([]sqlite.Entry, error)
}

// Handler exposes the console over HTTP. journal may be nil.
type Handler struct {
	console *core.Console
	journal Journal
	logger  *slog.Logger
}

// NewHandler creates the HTTP layer for console
func NewHandler(console *core.Console, journal Journal, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{console: console, journal: journal, logger: logger}
}

// InitRoutes builds the router with all routes registered
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/healthz", gin.WrapH(h.console.Health.ServeHealth()))
	router.GET("/metrics", gin.WrapH(h.console.Metrics.ServeMetrics()))
	router.GET("/ws", h.wsConnect)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", h.getState)
		v1.POST("/season", h.switchSeason)
		v1.POST("/overrides/:device", h.setOverride)
		v1.POST("/settings", h.submitSettings)
		v1.POST("/boiler/setpoint", h.setSetpoint)
		v1.DELETE("/banners/:id", h.dismissBanner)
		v1.GET("/chart", h.getChart)
		v1.GET("/journal", h.getJournal)
	}

	router.NoRoute(func(c *gin.Context) {
		sendError(c, http.StatusNotFound, "Endpoint not found")
	})
	return router
}

func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger.Debug("Handled request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

// sendData sends a success envelope
func sendData(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

// sendError sends an error envelope with the given status code and message
func sendError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Success:   false,
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

// sendFailure maps a controller error to its status code
func (h *Handler) sendFailure(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	sendError(c, status, messageFor(err))
}

func statusFor(err error) int {
	var (
		validation *core.ValidationError
		authErr    *api.AuthExpiredError
	)
	switch {
	case errors.Is(err, core.ErrReadOnly):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// messageFor prefers the operator-facing message carried by controller errors
func messageFor(err error) string {
	var (
		validation *core.ValidationError
		switchErr  *core.SwitchRequestError
		override   *core.OverrideRequestError
		request    *core.RequestError
	)
	switch {
	case errors.Is(err, core.ErrReadOnly):
		return core.MsgReadOnly
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &switchErr):
		return switchErr.Message
	case errors.As(err, &override):
		return override.Message
	case errors.As(err, &request):
		return request.Message
	default:
		return err.Error()
	}
}
