package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Cases     *CaseHandler
	Briefs    *BriefHandler
	Favorites *FavoriteHandler
	Files     *FileHandler
}

// RegisterRoutes mounts health, metrics and the /api surface on r
func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Standalone pipeline contracts
		api.POST("/generate", h.Briefs.Generate)
		api.POST("/verify", h.Briefs.Verify)

		// Case endpoints
		api.POST("/cases", h.Cases.CreateCase)
		api.GET("/cases", h.Cases.ListCases)
		api.GET("/cases/:id", h.Cases.GetCase)
		api.PATCH("/cases/:id/metadata", h.Cases.UpdateMetadata)
		api.POST("/cases/:id/briefs/:slot/resolve", h.Briefs.Resolve)
		api.POST("/cases/:id/briefs/:slot/jobs", h.Briefs.StartResolution)

		// Job endpoints
		api.GET("/jobs/:id", h.Briefs.GetJobStatus)

		// Favorite endpoints
		api.GET("/favorites", h.Favorites.ListFavorites)
		api.PUT("/favorites/:caseId", h.Favorites.AddFavorite)
		api.DELETE("/favorites/:caseId", h.Favorites.RemoveFavorite)

		// File endpoints
		if h.Files != nil {
			api.POST("/files/upload", h.Files.UploadFile)
			api.GET("/files/:id", h.Files.GetFile)
		}
	}
}
