package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"datakiln/internal/config"
	"datakiln/internal/database"
	"datakiln/internal/datagen"
	"datakiln/internal/handlers"
	"datakiln/internal/llm"
	"datakiln/internal/repositories"
	"datakiln/internal/routes"
	"datakiln/internal/services"
)

// NewServer wires configuration, the database pool, the generation backend
// and all services into a configured HTTP server.
func NewServer() (*http.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	// Dependency injection
	datasetRepo := repositories.NewDatasetRepository(pool)
	backend := llm.NewOpenAIBackend(cfg.LLM.APIKey, cfg.LLM.Model)
	generator := datagen.NewGenerator(backend)

	generationService := services.NewGenerationService(generator, datasetRepo)
	visualizationService := services.NewVisualizationService()

	schemaHandler := handlers.NewSchemaHandler(generationService, visualizationService)
	datasetHandler := handlers.NewDatasetHandler(generationService)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))

	routes.RegisterRoutes(router, schemaHandler, datasetHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		// Generation calls can take a while with large row counts.
		WriteTimeout: 5 * time.Minute,
	}

	return server, nil
}
