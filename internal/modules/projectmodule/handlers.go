package projectmodule

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ProjectRequest is the body of PUT /api/projects/:id.
type ProjectRequest struct {
	Prompt           string             `json:"prompt"`
	Code             string             `json:"code"`
	Scenes           []string           `json:"scenes"`
	VideoURL         string             `json:"videoUrl"`
	IndividualScenes []types.SceneVideo `json:"individualScenes"`
}

// APIHandler handles project HTTP requests
type APIHandler struct {
	store  Store
	logger hclog.Logger
}

// NewAPIHandler creates a project API handler.
func NewAPIHandler(store Store, logger hclog.Logger) *APIHandler {
	return &APIHandler{store: store, logger: logger}
}

// RegisterRoutes registers project routes under /api/projects.
func RegisterRoutes(router *gin.Engine, handler *APIHandler) {
	projects := router.Group("/api/projects")
	{
		projects.GET("/:id", handler.GetProject)
		projects.PUT("/:id", handler.PutProject)
		projects.DELETE("/:id", handler.DeleteProject)
	}
}

// GetProject handles GET /api/projects/:id
func (h *APIHandler) GetProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	project, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// PutProject handles PUT /api/projects/:id
func (h *APIHandler) PutProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	project := &Project{
		ID:               id,
		Prompt:           req.Prompt,
		Code:             req.Code,
		Scenes:           req.Scenes,
		VideoURL:         req.VideoURL,
		IndividualScenes: req.IndividualScenes,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := h.store.Save(c.Request.Context(), project); err != nil {
		h.respondError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /api/projects/:id
func (h *APIHandler) DeleteProject(c *gin.Context) {
	id, ok := h.projectID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) projectID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !validID.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return "", false
	}
	return id, true
}

func (h *APIHandler) respondError(c *gin.Context, id string, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	h.logger.Error("project store failed", "project_id", id, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Project store unavailable", "details": err.Error()})
}
