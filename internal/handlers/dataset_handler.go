package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"datakiln/internal/datagen"
	"datakiln/internal/models"
	"datakiln/internal/responses"
	"datakiln/internal/services"
	"datakiln/internal/utils"
)

type DatasetHandler struct {
	generationService *services.GenerationService
}

func NewDatasetHandler(generationService *services.GenerationService) *DatasetHandler {
	return &DatasetHandler{generationService: generationService}
}

type generateDatasetRequest struct {
	DDL          string `json:"ddl" binding:"required"`
	RowsPerTable int    `json:"rows_per_table" binding:"required,min=1"`
	Instructions string `json:"instructions"`
}

type regenerateTableRequest struct {
	Rows         int    `json:"rows" binding:"required,min=1"`
	Instructions string `json:"instructions"`
}

type saveDatasetRequest struct {
	Name string `json:"name" binding:"required"`
}

// GenerateDataset handles POST /api/v1/datasets
func (h *DatasetHandler) GenerateDataset(c *gin.Context) {
	var req generateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	progress := func(table, message string) {
		log.Printf("generation progress: %s: %s", table, message)
	}

	session, err := h.generationService.GenerateDataset(c.Request.Context(), req.DDL, req.RowsPerTable, req.Instructions, progress)
	if err != nil {
		responses.Fail(c, http.StatusBadGateway, err, "Dataset generation failed")
		return
	}

	responses.Success(c, http.StatusCreated, gin.H{
		"session_id":       session.ID,
		"generation_order": session.Schema.GenerationOrder(),
		"tables":           tableCounts(session.SnapshotDataset()),
		"warnings":         session.Schema.Warnings,
	}, "Dataset generated successfully")
}

// GetDataset handles GET /api/v1/datasets/:id
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"session_id": session.ID,
		"created_at": session.CreatedAt,
		"data":       session.SnapshotDataset(),
	}, "Dataset retrieved successfully")
}

// RegenerateTable handles POST /api/v1/datasets/:id/tables/:table/regenerate
func (h *DatasetHandler) RegenerateTable(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req regenerateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	table := c.Param("table")
	rows, stale, err := h.generationService.RegenerateTable(c.Request.Context(), session.ID, table, req.Rows, req.Instructions)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, datagen.ErrUnknownTable) {
			status = http.StatusNotFound
		}
		responses.Fail(c, status, err, fmt.Sprintf("Failed to regenerate table %s", table))
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"table":            table,
		"rows":             rows,
		"stale_dependents": stale,
	}, "Table regenerated successfully")
}

// SaveDataset handles POST /api/v1/datasets/:id/save
func (h *DatasetHandler) SaveDataset(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req saveDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	schemaName, totalRows, err := h.generationService.SaveDataset(c.Request.Context(), session.ID, req.Name)
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to save dataset")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"schema":     schemaName,
		"total_rows": totalRows,
	}, "Dataset saved successfully")
}

// ListSavedDatasets handles GET /api/v1/datasets
func (h *DatasetHandler) ListSavedDatasets(c *gin.Context) {
	schemas, err := h.generationService.ListSavedDatasets(c.Request.Context())
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Failed to list saved datasets")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"schemas": schemas}, "Saved datasets listed successfully")
}

// ExportTableCSV handles GET /api/v1/datasets/:id/tables/:table/csv
func (h *DatasetHandler) ExportTableCSV(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	// Buffer the export so a failed lookup still responds as JSON instead
	// of going out with download headers already written.
	table := c.Param("table")
	var buf bytes.Buffer
	if err := h.generationService.ExportCSV(session.ID, table, &buf); err != nil {
		responses.Fail(c, http.StatusNotFound, err, fmt.Sprintf("Failed to export table %s", table))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table+".csv"))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *DatasetHandler) session(c *gin.Context) (*services.Session, bool) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid session ID format")
		return nil, false
	}

	session, err := h.generationService.GetSession(id)
	if err != nil {
		responses.Fail(c, http.StatusNotFound, err, "Session not found")
		return nil, false
	}
	return session, true
}

func tableCounts(dataset models.Dataset) map[string]int {
	counts := make(map[string]int, len(dataset))
	for name, rows := range dataset {
		counts[name] = len(rows)
	}
	return counts
}
