package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"datakiln/internal/handlers"
	"datakiln/internal/middlewares"
)

func RegisterRoutes(router *gin.Engine, schemaHandler *handlers.SchemaHandler, datasetHandler *handlers.DatasetHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(middlewares.RequestID())
	{
		schema := api.Group("/schema")
		{
			schema.POST("/parse", schemaHandler.ParseSchema)
			schema.POST("/visualize", schemaHandler.VisualizeSchema)
		}

		datasets := api.Group("/datasets")
		{
			datasets.GET("", datasetHandler.ListSavedDatasets)
			datasets.POST("", datasetHandler.GenerateDataset)
			datasets.GET("/:id", datasetHandler.GetDataset)
			datasets.POST("/:id/save", datasetHandler.SaveDataset)
			datasets.POST("/:id/tables/:table/regenerate", datasetHandler.RegenerateTable)
			datasets.GET("/:id/tables/:table/csv", datasetHandler.ExportTableCSV)
		}
	}
}
