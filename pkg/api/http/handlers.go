package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/swarmcore/internal/application/workers"
	"github.com/aescanero/swarmcore/pkg/adapters/events/memory"
	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BatchRequest represents a batch dispatch request
type BatchRequest struct {
	Tasks []domain.Task `json:"tasks" binding:"required"`
}

// BatchResponse represents a batch dispatch response
type BatchResponse struct {
	Results  []domain.Result `json:"results"`
	Total    int             `json:"total"`
	Failed   int             `json:"failed"`
	Duration string          `json:"duration"`
}

// ImpactRequest represents an impact analysis request
type ImpactRequest struct {
	ModifiedKey string `json:"modified_key" binding:"required"`
	Target      string `json:"target"`
}

// TransformRequest represents a project transformation request. Sources maps
// file path to content; Files lists paths transformed without content.
type TransformRequest struct {
	Files   []string          `json:"files"`
	Sources map[string]string `json:"sources"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (s *Server) respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	health := s.pool.Health().GetStatus()

	status := http.StatusOK
	state := "healthy"
	if !health.Healthy || s.pool.Closed() {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	checks := gin.H{"workers": health}
	if s.store != nil {
		checks["context"] = gin.H{
			"entries":     s.store.Entries(),
			"queue_depth": s.store.Len(),
			"stopped":     s.store.Stopped(),
		}
	}

	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleListWorkers handles listing workers
func (s *Server) handleListWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data":      s.pool.Workers(),
		"health":    s.pool.Health().GetStatus(),
		"timestamp": time.Now().UTC(),
	})
}

// handleDispatchBatch runs a batch on the pool and returns every result
func (s *Server) handleDispatchBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := s.validator.Validate(req.Tasks); err != nil {
		s.respondError(c, http.StatusBadRequest, "INVALID_BATCH", err.Error())
		return
	}

	ctx := c.Request.Context()
	if s.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.batchTimeout)
		defer cancel()
	}

	start := time.Now()
	results, err := s.pool.DispatchBatch(ctx, req.Tasks)
	if err != nil {
		if errors.Is(err, workers.ErrPoolClosed) {
			s.respondError(c, http.StatusServiceUnavailable, "POOL_CLOSED", err.Error())
			return
		}
		s.logger.Error("failed to dispatch batch", zap.Error(err))
		s.respondError(c, http.StatusInternalServerError, "DISPATCH_FAILED", err.Error())
		return
	}

	duration := time.Since(start)
	failed := workers.CountFailed(results)
	if s.events != nil {
		if err := s.events.Publish(domain.NewBatchCompleted(len(results), failed, duration)); err != nil {
			s.logger.Debug("batch notification not published", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, BatchResponse{
		Results:  results,
		Total:    len(results),
		Failed:   failed,
		Duration: duration.String(),
	})
}

// handleGetContext returns a snapshot of the context store
func (s *Server) handleGetContext(c *gin.Context) {
	if s.store == nil {
		s.respondError(c, http.StatusServiceUnavailable, "CONTEXT_NOT_AVAILABLE", "Context store is not configured")
		return
	}

	snapshot := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"data":  snapshot,
		"total": len(snapshot),
	})
}

// handleGetEntry returns one context entry
func (s *Server) handleGetEntry(c *gin.Context) {
	if s.store == nil {
		s.respondError(c, http.StatusServiceUnavailable, "CONTEXT_NOT_AVAILABLE", "Context store is not configured")
		return
	}

	key := c.Query("key")
	if key == "" {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "key is required")
		return
	}

	value, ok := s.store.Get(key)
	if !ok {
		s.respondError(c, http.StatusNotFound, "NOT_FOUND", "Context entry not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":   key,
		"value": value,
	})
}

// handlePutEntry writes one context entry from an arbitrary JSON body
func (s *Server) handlePutEntry(c *gin.Context) {
	if s.store == nil {
		s.respondError(c, http.StatusServiceUnavailable, "CONTEXT_NOT_AVAILABLE", "Context store is not configured")
		return
	}

	key := c.Query("key")
	if key == "" {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "key is required")
		return
	}

	var value interface{}
	if err := c.ShouldBindJSON(&value); err != nil {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := s.store.Update(key, value); err != nil {
		if errors.Is(err, memory.ErrBusClosed) {
			s.respondError(c, http.StatusServiceUnavailable, "CONTEXT_CLOSED", err.Error())
			return
		}
		s.respondError(c, http.StatusInternalServerError, "UPDATE_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":    key,
		"status": "updated",
	})
}

// handleAnalyzeImpact runs an impact analysis over the context store
func (s *Server) handleAnalyzeImpact(c *gin.Context) {
	if s.analyzer == nil {
		s.respondError(c, http.StatusServiceUnavailable, "ANALYZER_NOT_AVAILABLE", "Impact analyzer is not configured")
		return
	}

	var req ImpactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	report, err := s.analyzer.AnalyzeChange(c.Request.Context(), req.ModifiedKey, req.Target)
	if err != nil {
		if errors.Is(err, workers.ErrPoolClosed) {
			s.respondError(c, http.StatusServiceUnavailable, "POOL_CLOSED", err.Error())
			return
		}
		s.logger.Error("impact analysis failed", zap.Error(err))
		s.respondError(c, http.StatusUnprocessableEntity, "ANALYSIS_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleTransform runs a project transformation
func (s *Server) handleTransform(c *gin.Context) {
	if s.transformer == nil {
		s.respondError(c, http.StatusServiceUnavailable, "TRANSFORMER_NOT_AVAILABLE", "Transformer is not configured")
		return
	}

	var req TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	sources := make(map[string]string, len(req.Files)+len(req.Sources))
	for _, f := range req.Files {
		sources[f] = ""
	}
	for f, src := range req.Sources {
		sources[f] = src
	}
	if len(sources) == 0 {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "files or sources are required")
		return
	}

	report, err := s.transformer.TransformSources(c.Request.Context(), sources)
	if err != nil {
		if errors.Is(err, workers.ErrPoolClosed) || errors.Is(err, memory.ErrBusClosed) {
			s.respondError(c, http.StatusServiceUnavailable, "TRANSFORMER_CLOSED", err.Error())
			return
		}
		s.logger.Error("transformation failed", zap.Error(err))
		s.respondError(c, http.StatusUnprocessableEntity, "TRANSFORM_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, report)
}
