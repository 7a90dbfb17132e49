// Package api implements the JSON API: image ingestion, detection queries,
// per-user analytics, the customer webhook and the auth status endpoint.
package api

import (
	"context"
	"crypto/rand"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/wildwatch/wildwatch-go/internal/conf"
	"github.com/wildwatch/wildwatch-go/internal/datastore"
	"github.com/wildwatch/wildwatch-go/internal/errors"
	"github.com/wildwatch/wildwatch-go/internal/imagestore"
	"github.com/wildwatch/wildwatch-go/internal/ingest"
	"github.com/wildwatch/wildwatch-go/internal/logging"
)

// Ingestor is the batch ingestion capability the controller invokes.
type Ingestor interface {
	Ingest(ctx context.Context, userID string, files []ingest.UploadFile) (*ingest.BatchResult, error)
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	DS        datastore.Interface
	Settings  *conf.Settings
	Ingestor  Ingestor
	BlobStore imagestore.Store

	logger         *log.Logger
	apiLogger      *slog.Logger
	dashboardCache *cache.Cache
}

// New creates the API controller and registers its routes on the echo
// instance.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	ingestor Ingestor, blobStore imagestore.Store, logger *log.Logger) *Controller {

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:           e,
		Group:          e.Group("/api"),
		DS:             ds,
		Settings:       settings,
		Ingestor:       ingestor,
		BlobStore:      blobStore,
		logger:         logger,
		apiLogger:      logging.ForService("api"),
		dashboardCache: cache.New(1*time.Minute, 5*time.Minute),
	}

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.initDetectionRoutes()
	c.initAnalyticsRoutes()
	c.initWebhookRoutes()
	c.initAuthRoutes()
}

// HealthCheck handles the API health check endpoint.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "wildwatch",
	})
}

// ErrorResponse is the standard JSON error payload.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "fallback"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.logger.Printf("API Error [%s] from %s: %s: %v",
		errorResp.CorrelationID, ctx.RealIP(), message, err)
	if c.apiLogger != nil {
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorResp.Error,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// statusFor maps an error to an HTTP status via its error category.
func statusFor(err error) int {
	switch {
	case errors.HasCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.HasCategory(err, errors.CategoryNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// LoggingMiddleware creates a middleware function that logs API requests.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// Debug logs debug messages when web server debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings != nil && c.Settings.WebServer.Debug {
		c.logger.Printf("[DEBUG] "+format, v...)
	}
}
