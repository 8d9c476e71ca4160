// Package router wires the RAG service HTTP routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/ragserve/handler"
	"github.com/kart-io/ragserve/pkg/app"
)

// Register registers all service routes on the gin engine.
func Register(engine *gin.Engine, ragHandler *handler.RAGHandler, dataHandler *handler.DataHandler) {
	logger.Info("Registering routes...")

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": app.GetVersion()})
	})

	v1 := engine.Group("/v1")
	{
		data := v1.Group("/data")
		{
			data.POST("/upload", dataHandler.Upload)
			data.GET("/documents", dataHandler.List)
			data.POST("/process/:file_id", dataHandler.Process)
			data.POST("/push/:file_id", dataHandler.Push)
			data.DELETE("/documents/:file_id", dataHandler.Delete)
		}

		rag := v1.Group("/rag")
		{
			rag.POST("/search/:file_id", ragHandler.Search)
			rag.POST("/answer/:file_id", ragHandler.Answer)
			rag.GET("/stats", ragHandler.Stats)
			rag.GET("/collections/:file_id", ragHandler.CollectionInfo)
			rag.DELETE("/collections/:file_id", ragHandler.ResetCollection)
		}
	}

	logger.Info("HTTP routes registered")
}
