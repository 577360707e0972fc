package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/clipscribe/clipscribe/internal/api/handlers"
)

type Deps struct {
	Upload *handlers.UploadHandler
	Status *handlers.StatusHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/upload", d.Upload.Upload)
	r.GET("/status", d.Status.Status)
	r.GET("/latest", d.Status.Latest)
}
