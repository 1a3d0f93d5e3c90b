// Package api is the HTTP boundary of the onboarding service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/common/observability"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/service"
)

// OnboardingService is the set of operations the router exposes.
type OnboardingService interface {
	SubmitApplication(ctx context.Context, form map[string]interface{}, baseURL string) (*service.SubmitResult, error)
	RecordApproverResponse(ctx context.Context, in service.ApproverResponse) (*service.Ack, error)
	GetWorkflowStatus(ctx context.Context, workflowID string) (*models.WorkflowStatusView, error)
	HandleApprovalCallback(ctx context.Context, payload map[string]interface{}) (*service.CallbackResult, error)
	HandleRejectionCallback(ctx context.Context, payload map[string]interface{}) (*service.CallbackResult, error)
	ListApplications(ctx context.Context, filter models.WorkflowFilter) ([]models.ApplicationView, error)
	ListTransactions(ctx context.Context, workflowID string, limit int) ([]models.Transaction, error)
	ApproverQueue(ctx context.Context, ordinal int) ([]models.ApproverQueueItem, error)
	AddTransaction(ctx context.Context, in service.TransactionInput) (*models.Transaction, error)
	Health(ctx context.Context) *service.HealthReport
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Mode            string
	BaseURL         string // empty derives it from each request
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	service    OnboardingService
	obs        *observability.Observability
	logger     logger.Logger
}

func NewServer(config ServerConfig, svc OnboardingService, obs *observability.Observability, log logger.Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		config:  config,
		router:  gin.New(),
		service: svc,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"component": "http"}),
	}
	s.router.Use(gin.Recovery(), s.requestMiddleware())
	s.setupRoutes()
	return s
}

func (s *Server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)
		if s.obs != nil {
			s.obs.RecordRequest(c.Request.Context(), c.Request.Method, route, status, latency)
		}
		if route == "/metrics" || route == "/health" || route == "/ready" {
			return
		}
		s.logger.Debug("HTTP request", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"latency":  latency.String(),
			"clientIp": c.ClientIP(),
		})
	}
}

func (s *Server) setupRoutes() {
	h := &handlers{service: s.service, baseURL: s.config.BaseURL, logger: s.logger}

	s.router.POST("/submit-application", h.submitApplication)
	s.router.POST("/approver-response", h.approverResponse)
	s.router.GET("/workflow-status/:workflowId", h.workflowStatus)

	for _, prefix := range []string{"/webhook", ""} {
		s.router.POST(prefix+"/approval", h.approvalCallback)
		s.router.POST(prefix+"/rejection", h.rejectionCallback)
	}

	s.router.GET("/applications", h.listApplications)
	s.router.GET("/transactions", h.listTransactions)
	s.router.GET("/approver-queue/:approverId", h.approverQueue)
	s.router.POST("/add-transaction", h.addTransaction)

	s.router.GET("/health", h.health)
	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("HTTP server listening", map[string]interface{}{"address": addr})

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped", nil)
	return nil
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
