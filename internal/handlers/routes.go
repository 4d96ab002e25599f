package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Timeout     time.Duration
	AllowOrigin string
}

func InitRoutes(h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger(), CORS(cfg.AllowOrigin), Timeout(cfg.Timeout))

	router.GET("/health", h.Health)
	router.POST("/colorize", h.Colorize)
	router.POST("/colorize/png", h.ColorizePNG)

	router.POST("/jobs", h.SubmitJob)
	router.GET("/jobs/:id", h.GetJob)
	router.GET("/jobs/:id/:kind", h.GetJobImage)
	router.DELETE("/jobs/:id", h.DeleteJob)

	return router
}
