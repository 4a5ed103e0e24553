// Package api provides HTTP handlers and routes for the render module.
package api

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/database"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/repository"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
)

// APIHandler handles HTTP requests for the render module.
type APIHandler struct {
	service RenderAPIService
	logger  hclog.Logger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(service RenderAPIService, logger hclog.Logger) *APIHandler {
	return &APIHandler{
		service: service,
		logger:  logger.Named("render-api"),
	}
}

// Execute handles POST /api/execute
//
// Request body:
//
//	{
//	  "code": "string",                // legacy single file
//	  "scenes": [{"name", "content"}], // one entry per source file
//	  "combineVideos": true,           // optional, default true
//	  "projectId": "string",           // optional project to save into
//	  "prompt": "string"               // optional, stored with the project
//	}
func (h *APIHandler) Execute(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   rendererrors.StageInvalidRequest,
			Details: "Request body must be JSON with either code or scenes array",
		})
		return
	}

	resp, err := h.service.Execute(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetVideo handles GET /api/execute?id=<file>
func (h *APIHandler) GetVideo(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Video ID required"})
		return
	}
	if id != path.Base(id) || strings.Contains(id, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid video ID"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"videoUrl": h.service.VideoURL(id)})
}

// CombineVideos handles POST /api/combine-videos
func (h *APIHandler) CombineVideos(c *gin.Context) {
	var req types.CombineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   rendererrors.StageInvalidRequest,
			Details: "Request body must be JSON with a videoPaths array",
		})
		return
	}

	resp, err := h.service.Combine(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListVideos handles GET /api/videos
func (h *APIHandler) ListVideos(c *gin.Context) {
	artifacts, err := h.service.ListArtifacts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"videos": artifacts,
		"count":  len(artifacts),
	})
}

// ListCompilations handles GET /api/compilations
func (h *APIHandler) ListCompilations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	filter := repository.ListFilter{
		Status: database.BatchStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}
	records, total, err := h.service.ListCompilations(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"compilations": records,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// GetCompilation handles GET /api/compilations/:id
func (h *APIHandler) GetCompilation(c *gin.Context) {
	record, err := h.service.GetCompilation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetStats handles GET /api/compilations/stats
func (h *APIHandler) GetStats(c *gin.Context) {
	stats, err := h.service.CompilationStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondError maps a service error onto the shared error body.
func (h *APIHandler) respondError(c *gin.Context, err error) {
	status := rendererrors.HTTPStatus(err)
	body := types.ErrorResponse{
		Error:   rendererrors.GetStage(err),
		Details: rendererrors.Diagnostic(err),
	}

	details := rendererrors.GetDetails(err)
	if v, ok := details["className"].(string); ok {
		body.ClassName = v
	}
	if v, ok := details["fileName"].(string); ok {
		body.FileName = v
	}
	if v, ok := details["sceneCount"].(int); ok {
		body.SceneCount = v
	}
	if v, ok := details["individualScenes"].([]types.SceneVideo); ok {
		body.IndividualScenes = v
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "status", status, "stage", body.Error, "error", err)
	} else {
		h.logger.Debug("request rejected", "path", c.FullPath(), "status", status, "stage", body.Error)
	}
	c.JSON(status, body)
}
