package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"datakiln/internal/responses"
	"datakiln/internal/services"
)

type SchemaHandler struct {
	generationService    *services.GenerationService
	visualizationService *services.VisualizationService
}

func NewSchemaHandler(generationService *services.GenerationService, visualizationService *services.VisualizationService) *SchemaHandler {
	return &SchemaHandler{
		generationService:    generationService,
		visualizationService: visualizationService,
	}
}

type parseSchemaRequest struct {
	DDL string `json:"ddl" binding:"required"`
}

// ParseSchema handles POST /api/v1/schema/parse
func (h *SchemaHandler) ParseSchema(c *gin.Context) {
	var req parseSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	converted, result, err := h.generationService.ParseDDL(req.DDL)
	if err != nil {
		responses.Fail(c, http.StatusUnprocessableEntity, err, "Failed to parse DDL")
		return
	}

	tables := make([]any, 0, len(result.Names))
	for _, name := range result.Names {
		tables = append(tables, result.Tables[name])
	}

	responses.Success(c, http.StatusOK, gin.H{
		"tables":           tables,
		"generation_order": result.GenerationOrder(),
		"warnings":         result.Warnings,
		"converted_ddl":    converted,
	}, "Schema parsed successfully")
}

// VisualizeSchema handles POST /api/v1/schema/visualize
func (h *SchemaHandler) VisualizeSchema(c *gin.Context) {
	var req parseSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	_, result, err := h.generationService.ParseDDL(req.DDL)
	if err != nil {
		responses.Fail(c, http.StatusUnprocessableEntity, err, "Failed to parse DDL")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"mermaid": h.visualizationService.MermaidDiagram(result),
	}, "Schema visualization generated successfully")
}
