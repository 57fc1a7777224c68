package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/wallet-gnn/internal/batch"
	"github.com/rawblock/wallet-gnn/internal/db"
	"github.com/rawblock/wallet-gnn/internal/metrics"
	"github.com/rawblock/wallet-gnn/internal/scoring"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

// ResultStore persists and serves risk assessments.
type ResultStore interface {
	SaveRiskAssessment(ctx context.Context, a models.RiskAssessment) error
	GetRiskAssessment(ctx context.Context, addr string) (models.RiskAssessment, error)
}

// LabelStore persists ground-truth labels.
type LabelStore interface {
	SaveLabel(ctx context.Context, addr string, label int, source string) error
	LoadLabels(ctx context.Context) ([]models.LabeledAddress, error)
}

// HealthChecker reports backing store status.
type HealthChecker interface {
	Ping(ctx context.Context) error
	CountRows(ctx context.Context) (map[string]int64, error)
}

// Config wires the router. Only Service is required; handlers backed by a
// nil dependency answer 503.
type Config struct {
	Service *scoring.Service
	Results ResultStore
	Labels  LabelStore
	Health  HealthChecker
	Hub     *Hub
	Batch   *batch.Scorer
	Limiter *RateLimiter

	AuthToken      string
	AllowedOrigins string
	ReleaseMode    bool
}

type APIHandler struct {
	service *scoring.Service
	results ResultStore
	labels  LabelStore
	health  HealthChecker
	wsHub   *Hub
	batch   *batch.Scorer
}

func SetupRouter(cfg Config) *gin.Engine {
	r := gin.Default()
	r.Use(metrics.Middleware())

	// Enable CORS, configurable via ALLOWED_ORIGINS
	// Production: ALLOWED_ORIGINS=https://risk.example.org
	// Development: leave empty for *
	allowedOrigins := cfg.AllowedOrigins
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		service: cfg.Service,
		results: cfg.Results,
		labels:  cfg.Labels,
		health:  cfg.Health,
		wsHub:   cfg.Hub,
		batch:   cfg.Batch,
	}

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	{
		// Public
		api.GET("/health", handler.handleHealth)
		api.GET("/batch/progress", handler.handleBatchProgress)
		if cfg.Hub != nil {
			api.GET("/stream", cfg.Hub.Subscribe)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(cfg.AuthToken, cfg.ReleaseMode))
		if cfg.Limiter != nil {
			protected.Use(cfg.Limiter.Middleware())
		}

		protected.POST("/wallet_score", handler.handleWalletScore)
		protected.GET("/wallet_score/:address", handler.handleStoredScore)
		protected.POST("/evaluate", handler.handleEvaluate)
		protected.POST("/batch", handler.handleStartBatch)
		protected.POST("/labels", handler.handleSaveLabels)
		protected.GET("/labels", handler.handleListLabels)
	}

	return r
}

// scoringStatus maps service errors onto HTTP status codes.
func scoringStatus(err error) int {
	switch {
	case errors.Is(err, scoring.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, scoring.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleWalletScore scores one wallet against a freshly built graph.
// POST /api/v1/wallet_score { "wallet_address": "0x..." }
func (h *APIHandler) handleWalletScore(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"wallet_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {wallet_address}"})
		return
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet_address is required"})
		return
	}

	assessment, err := h.service.ScoreAddress(c.Request.Context(), req.WalletAddress)
	if err != nil {
		c.JSON(scoringStatus(err), gin.H{"error": "Failed to score wallet", "details": err.Error()})
		return
	}

	if h.results != nil && assessment.TransactionCount > 0 {
		if err := h.results.SaveRiskAssessment(c.Request.Context(), assessment); err != nil {
			log.Printf("Failed to save risk assessment for %s to DB: %v", assessment.Address, err)
		}
	}
	if h.wsHub != nil && assessment.RiskCategory == scoring.RiskHigh {
		BroadcastRiskAlert(h.wsHub)(assessmentAlert(assessment))
	}

	c.JSON(http.StatusOK, assessment)
}

// handleStoredScore returns the last persisted assessment of a wallet.
func (h *APIHandler) handleStoredScore(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	assessment, err := h.results.GetRiskAssessment(c.Request.Context(), c.Param("address"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No stored assessment for this address"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch assessment", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// handleEvaluate thresholds scores for a list of wallets. With
// ?format=csv the ADDRESS,PREDICTION report is returned instead of JSON.
// POST /api/v1/evaluate { "addresses": [...], "threshold": 0.5 }
func (h *APIHandler) handleEvaluate(c *gin.Context) {
	var req struct {
		Addresses []string `json:"addresses"`
		Threshold *float64 `json:"threshold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Addresses) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {addresses, threshold?}"})
		return
	}
	threshold := scoring.DefaultThreshold
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be within [0, 1]"})
			return
		}
		threshold = *req.Threshold
	}

	rows, err := h.service.EvaluateAddresses(c.Request.Context(), req.Addresses, threshold)
	if err != nil {
		c.JSON(scoringStatus(err), gin.H{"error": "Failed to evaluate wallets", "details": err.Error()})
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="predictions.csv"`)
		c.Status(http.StatusOK)
		if err := scoring.WriteReport(c.Writer, rows); err != nil {
			_ = c.Error(err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threshold":   threshold,
		"predictions": rows,
	})
}

// handleStartBatch launches background scoring of many wallets.
// POST /api/v1/batch { "addresses": [...] }
func (h *APIHandler) handleStartBatch(c *gin.Context) {
	if h.batch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch scorer not initialized"})
		return
	}
	var req struct {
		Addresses []string `json:"addresses"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Addresses) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {addresses}"})
		return
	}

	// The job outlives the request.
	jobID, err := h.batch.Start(context.Background(), req.Addresses)
	if errors.Is(err, batch.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "progress": h.batch.GetProgress()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start batch", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "batch_started",
		"jobId":  jobID,
		"total":  len(req.Addresses),
	})
}

// handleBatchProgress returns the current progress of the batch scorer.
func (h *APIHandler) handleBatchProgress(c *gin.Context) {
	if h.batch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Batch scorer not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.batch.GetProgress())
}

// handleHealth returns engine status for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":      "operational",
		"engine":      "Wallet GNN Risk Engine",
		"modelLoaded": h.service != nil && h.service.Handle().Loaded(),
		"dbConnected": false,
	}
	if h.health != nil {
		ctx := c.Request.Context()
		if err := h.health.Ping(ctx); err == nil {
			resp["dbConnected"] = true
			if counts, err := h.health.CountRows(ctx); err == nil {
				resp["rows"] = counts
			}
		} else {
			resp["dbError"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}
