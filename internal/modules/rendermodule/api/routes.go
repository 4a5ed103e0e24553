package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all render module API routes.
//
//	/api
//	├── /execute           - compile code or scene files (POST), resolve a video URL (GET)
//	├── /combine-videos    - concatenate published videos
//	├── /videos            - artifact index
//	├── /compilations      - compilation history
//	└── /events/stream     - websocket pipeline events
func RegisterRoutes(router *gin.Engine, handler *APIHandler, stream *StreamHandler) {
	api := router.Group("/api")
	{
		api.POST("/execute", handler.Execute)
		api.GET("/execute", handler.GetVideo)
		api.POST("/combine-videos", handler.CombineVideos)
		api.GET("/videos", handler.ListVideos)

		api.GET("/compilations", handler.ListCompilations)
		api.GET("/compilations/stats", handler.GetStats)
		api.GET("/compilations/:id", handler.GetCompilation)

		if stream != nil {
			api.GET("/events/stream", stream.Stream)
		}
	}
}
