package generatormodule

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/extractor"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"github.com/manimforge/manimforge/internal/utils"
)

const maxPromptLength = 8000

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse carries the generated source and its scene classes.
type GenerateResponse struct {
	Code   string   `json:"code"`
	Scenes []string `json:"scenes"`
}

// APIHandler serves generation requests.
type APIHandler struct {
	mu        sync.RWMutex
	generator Generator
	limiter   *utils.RateLimiter
	timeout   time.Duration

	extractor extractor.Extractor
	logger    hclog.Logger
}

// NewAPIHandler creates a handler. A nil generator disables generation.
func NewAPIHandler(generator Generator, limiter *utils.RateLimiter, timeout time.Duration, logger hclog.Logger) *APIHandler {
	return &APIHandler{
		generator: generator,
		limiter:   limiter,
		timeout:   timeout,
		extractor: extractor.New(),
		logger:    logger,
	}
}

// swap replaces the generator and returns the previous one.
func (h *APIHandler) swap(generator Generator, limiter *utils.RateLimiter, timeout time.Duration) (Generator, *utils.RateLimiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	oldGen, oldLimiter := h.generator, h.limiter
	h.generator, h.limiter, h.timeout = generator, limiter, timeout
	return oldGen, oldLimiter
}

// RegisterRoutes registers POST /api/generate.
func RegisterRoutes(router *gin.Engine, handler *APIHandler) {
	api := router.Group("/api")
	{
		api.POST("/generate", handler.Generate)
	}
}

// Generate handles POST /api/generate
func (h *APIHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt required"})
		return
	}
	if len(prompt) > maxPromptLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt too long"})
		return
	}

	h.mu.RLock()
	generator, limiter, timeout := h.generator, h.limiter, h.timeout
	h.mu.RUnlock()

	if generator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Generator not configured"})
		return
	}
	if limiter != nil && !limiter.TryWait() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many generation requests"})
		return
	}

	ctx := c.Request.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	code, err := generator.Generate(ctx, prompt)
	if err != nil {
		h.logger.Warn("generation failed", "error", err, "duration", time.Since(start))
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": rendererrors.StageGenerationFailure, "details": err.Error()})
		return
	}

	scenes := h.extractor.ExtractDeclaredScenes(code)
	if scenes == nil {
		scenes = []string{}
	}
	h.logger.Info("scene source generated", "scenes", len(scenes), "duration", time.Since(start))
	c.JSON(http.StatusOK, GenerateResponse{Code: code, Scenes: scenes})
}
