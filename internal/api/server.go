// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"creator-match/internal/app"
	apperrors "creator-match/internal/common/errors"
	"creator-match/internal/common/logger"
	"creator-match/internal/common/metrics"
	"creator-match/internal/common/validation"
	"creator-match/internal/engine/cache"
	"creator-match/internal/engine/orchestrator"
	"creator-match/internal/models"
)

type Analyzer interface {
	RunAnalysis(ctx context.Context, profile models.BusinessProfile, opts orchestrator.Options) (*models.AnalysisRecord, error)
}

type RecordLoader interface {
	LoadByFingerprint(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error)
}

type Projector interface {
	Project(payload models.StorePayload, hints models.ProfileHints) (models.BusinessProfile, error)
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	Analyzer  Analyzer
	Records   RecordLoader
	Projector Projector
	Quotas    func() []app.QuotaStatus
	Ready     func(ctx context.Context) map[string]error
}

func DepsFromApp(a *app.App) Deps {
	return Deps{
		Analyzer:  a.Orchestrator,
		Records:   a.Store,
		Projector: a.Projector,
		Quotas:    a.Quotas,
		Ready:     a.Ready,
	}
}

type Server struct {
	Echo   *echo.Echo
	deps   Deps
	logger logger.Logger
}

func NewServer(deps Deps, log logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:   e,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(s.observe)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/ready", s.handleReady)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")
	api.POST("/analyses", s.handleRunAnalysis)
	api.GET("/analyses/:fingerprint", s.handleGetAnalysis)
	api.POST("/profiles/fingerprint", s.handleFingerprint)
	api.POST("/profiles/project", s.handleProject)
	api.GET("/quota", s.handleQuota)
}

// observe logs and counts every request by its route pattern.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		route := c.Path()
		status := c.Response().Status
		elapsed := time.Since(start)
		metrics.APIRequests.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		fields := map[string]interface{}{
			"method":     c.Request().Method,
			"route":      route,
			"status":     status,
			"durationMs": elapsed.Milliseconds(),
			"requestId":  c.Response().Header().Get(echo.HeaderXRequestID),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed", fields)
		} else {
			s.logger.Debug("request served", fields)
		}
		return nil
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(c echo.Context) error {
	if s.deps.Ready == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	failed := s.deps.Ready(c.Request().Context())
	if len(failed) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	reasons := map[string]string{}
	for name, err := range failed {
		reasons[name] = err.Error()
	}
	return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
		"status": "not ready",
		"failed": reasons,
	})
}

func (s *Server) handleRunAnalysis(c echo.Context) error {
	var req models.RunRequest
	if err := decodeValidated(c, validation.RunRequest(), &req); err != nil {
		return s.fail(c, err)
	}

	rec, err := s.deps.Analyzer.RunAnalysis(c.Request().Context(), req.Profile, orchestrator.Options{
		MaxResults:   req.Options.MaxResults,
		MinScore:     req.Options.MinScore,
		ForceRefresh: req.Options.ForceRefresh,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleGetAnalysis(c echo.Context) error {
	fp := c.Param("fingerprint")
	rec, err := s.deps.Records.LoadByFingerprint(c.Request().Context(), fp)
	if err != nil {
		return s.fail(c, apperrors.NewInternalError(err))
	}
	if rec == nil {
		return s.fail(c, apperrors.NewRecordNotFoundError(fp))
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleFingerprint(c echo.Context) error {
	var profile models.BusinessProfile
	if err := json.NewDecoder(c.Request().Body).Decode(&profile); err != nil {
		return s.fail(c, apperrors.NewInvalidProfileError(err))
	}
	if err := profile.Validate(); err != nil {
		return s.fail(c, apperrors.NewInvalidProfileError(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"fingerprint": cache.ProfileFingerprint(profile)})
}

func (s *Server) handleProject(c echo.Context) error {
	var req models.ProjectRequest
	if err := decodeValidated(c, validation.ProjectRequest(), &req); err != nil {
		return s.fail(c, err)
	}
	profile, err := s.deps.Projector.Project(req.Payload, req.Hints)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleQuota(c echo.Context) error {
	if s.deps.Quotas == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"quotas": []app.QuotaStatus{}})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"quotas": s.deps.Quotas()})
}

// decodeValidated checks the raw body against schema before decoding it
// into out.
func decodeValidated(c echo.Context, schema *validation.Schema, out interface{}) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperrors.NewPayloadInvalidError(fmt.Sprintf("read body: %v", err))
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return apperrors.NewPayloadInvalidError(fmt.Sprintf("parse body: %v", err))
	}
	result, err := schema.Validate(doc)
	if err != nil {
		return apperrors.NewPayloadInvalidError(err.Error())
	}
	if !result.Valid {
		return apperrors.NewPayloadInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewPayloadInvalidError(fmt.Sprintf("decode body: %v", err))
	}
	return nil
}

type errorResponse struct {
	Error *apperrors.StandardError `json:"error"`
}

func (s *Server) fail(c echo.Context, err error) error {
	stdErr := apperrors.Normalize(err)
	status := StatusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", map[string]interface{}{
			"code":    string(stdErr.Code),
			"details": stdErr.Details,
		})
	}
	return c.JSON(status, errorResponse{Error: stdErr})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidProfile, apperrors.ErrCodePayloadInvalid:
		return http.StatusBadRequest
	case apperrors.ErrCodeRecordNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeProjectionFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeAnalysisTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Start serves on address until Shutdown is called.
func (s *Server) Start(address string) error {
	if err := s.Echo.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
