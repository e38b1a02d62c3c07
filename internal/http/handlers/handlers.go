package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/localizador/backend/internal/allocation"
	"github.com/localizador/backend/internal/db"
	"github.com/localizador/backend/internal/models"
	"github.com/localizador/backend/internal/service"
)

// Store is the database surface used by the handlers.
type Store interface {
	Ping(ctx context.Context) error
	ListTechnicians(ctx context.Context, filter models.TechnicianFilter) ([]models.Technician, error)
	GetTechnician(ctx context.Context, id string) (models.Technician, error)
	CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error)
	UpdateTechnician(ctx context.Context, t models.Technician) (models.Technician, error)
	DeleteTechnician(ctx context.Context, id string) error
	ReplaceTechnicians(ctx context.Context, techs []models.Technician) (int64, error)
	TechnicianFilterOptions(ctx context.Context) (models.FilterOptions, error)
	TechnicianStats(ctx context.Context) (models.TechnicianStats, error)
	GetLatestRun(ctx context.Context) (models.Run, error)
	GetRun(ctx context.Context, id string) (models.Run, error)
}

// Settings is the configuration exposed to clients.
type Settings struct {
	Defaults        allocation.Params `json:"defaults"`
	DistancePresets []float64         `json:"distance_presets"`
	Geocoder        string            `json:"geocoder"`
	Router          string            `json:"router"`
	MaxBatchSize    int               `json:"max_batch_size"`
}

type Handler struct {
	Store     Store
	Dispatch  *service.DispatchService
	Validator *validator.Validate
	Logger    zerolog.Logger
	Settings  Settings
}

type ReplaceSummary struct {
	Inserted int64 `json:"inserted"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Service configuration
// @Tags config
// @Produce json
// @Success 200 {object} Settings
// @Router /api/config [get]
func (h *Handler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, h.Settings)
}

// @Summary List technicians
// @Tags technicians
// @Produce json
// @Param state query string false "State"
// @Param city query string false "City"
// @Param coordinator query string false "Coordinator"
// @Success 200 {array} models.Technician
// @Router /api/technicians [get]
func (h *Handler) TechniciansList(c *gin.Context) {
	var filter models.TechnicianFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_QUERY", "Invalid filter", err.Error())
		return
	}
	techs, err := h.Store.ListTechnicians(c.Request.Context(), filter)
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to list technicians")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, techs)
}

// @Summary Technician filter options
// @Tags technicians
// @Produce json
// @Success 200 {object} models.FilterOptions
// @Router /api/technicians/filters [get]
func (h *Handler) TechnicianFilters(c *gin.Context) {
	opts, err := h.Store.TechnicianFilterOptions(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load filters", err.Error())
		return
	}
	c.JSON(http.StatusOK, opts)
}

// @Summary Technician directory statistics
// @Tags technicians
// @Produce json
// @Success 200 {object} models.TechnicianStats
// @Router /api/technicians/stats [get]
func (h *Handler) TechniciansStats(c *gin.Context) {
	stats, err := h.Store.TechnicianStats(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load statistics", err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Technician details
// @Tags technicians
// @Produce json
// @Param id path string true "Technician id"
// @Success 200 {object} models.Technician
// @Failure 404 {object} map[string]any
// @Router /api/technicians/{id} [get]
func (h *Handler) TechnicianDetails(c *gin.Context) {
	t, err := h.Store.GetTechnician(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Technician not found")
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary Create technician
// @Tags technicians
// @Accept json
// @Produce json
// @Param technician body models.Technician true "Technician"
// @Success 201 {object} models.Technician
// @Failure 400 {object} map[string]any
// @Router /api/technicians [post]
func (h *Handler) TechnicianCreate(c *gin.Context) {
	var t models.Technician
	if !h.bindJSON(c, &t) {
		return
	}
	created, err := h.Store.CreateTechnician(c.Request.Context(), t)
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to create technician")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create technician", err.Error())
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary Update technician
// @Tags technicians
// @Accept json
// @Produce json
// @Param id path string true "Technician id"
// @Param technician body models.Technician true "Technician"
// @Success 200 {object} models.Technician
// @Router /api/technicians/{id} [put]
func (h *Handler) TechnicianUpdate(c *gin.Context) {
	var t models.Technician
	if !h.bindJSON(c, &t) {
		return
	}
	t.ID = c.Param("id")
	updated, err := h.Store.UpdateTechnician(c.Request.Context(), t)
	if err != nil {
		h.storeError(c, err, "Technician not found")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// @Summary Delete technician
// @Tags technicians
// @Param id path string true "Technician id"
// @Success 204
// @Router /api/technicians/{id} [delete]
func (h *Handler) TechnicianDelete(c *gin.Context) {
	if err := h.Store.DeleteTechnician(c.Request.Context(), c.Param("id")); err != nil {
		h.storeError(c, err, "Technician not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Replace technician directory
// @Description Replaces the whole directory with the given records, in order
// @Tags technicians
// @Accept json
// @Produce json
// @Param technicians body []models.Technician true "Technicians"
// @Success 200 {object} ReplaceSummary
// @Failure 400 {object} map[string]any
// @Router /api/technicians [put]
func (h *Handler) TechniciansReplace(c *gin.Context) {
	var techs []models.Technician
	if err := c.ShouldBindJSON(&techs); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", err.Error())
		return
	}
	var problems []string
	for i, t := range techs {
		if err := h.Validator.Struct(t); err != nil {
			problems = append(problems, fmt.Sprintf("row %d: %s", i+1, err.Error()))
		}
	}
	if len(problems) > 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid technicians", problems)
		return
	}
	n, err := h.Store.ReplaceTechnicians(c.Request.Context(), techs)
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to replace technicians")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to replace technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, ReplaceSummary{Inserted: n})
}

type regeocodeRequest struct {
	Force  bool                    `json:"force"`
	Filter models.TechnicianFilter `json:"filter"`
}

// @Summary Geocode technicians
// @Description Fills missing technician coordinates from their address
// @Tags technicians
// @Accept json
// @Produce json
// @Success 200 {object} service.RegeocodeSummary
// @Router /api/technicians/regeocode [post]
func (h *Handler) TechniciansRegeocode(c *gin.Context) {
	var req regeocodeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", err.Error())
			return
		}
	}
	sum, err := h.Dispatch.RegeocodeTechnicians(c.Request.Context(), req.Filter, req.Force)
	if err != nil {
		h.Logger.Error().Err(err).Msg("regeocode failed")
		writeError(c, http.StatusInternalServerError, "REGEOCODE_ERROR", "Geocoding failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, sum)
}

// @Summary Search technicians near an address
// @Tags search
// @Accept json
// @Produce json
// @Param request body service.SearchRequest true "Search"
// @Success 200 {object} allocation.SearchResult
// @Failure 400 {object} map[string]any
// @Router /api/search [post]
func (h *Handler) Search(c *gin.Context) {
	var req service.SearchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.Dispatch.Search(c.Request.Context(), req)
	if err != nil {
		h.Logger.Error().Err(err).Msg("search failed")
		writeError(c, http.StatusInternalServerError, "SEARCH_ERROR", "Search failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Allocate a batch of service requests
// @Tags batches
// @Accept json
// @Produce json
// @Param request body service.BatchRequest true "Batch"
// @Success 200 {object} service.BatchOutcome
// @Failure 400 {object} map[string]any
// @Router /api/batches [post]
func (h *Handler) Batch(c *gin.Context) {
	var req service.BatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.Dispatch.ProcessBatch(c.Request.Context(), req)
	switch {
	case errors.Is(err, service.ErrEmptyBatch):
		writeError(c, http.StatusBadRequest, "EMPTY_BATCH", "No service requests", err.Error())
		return
	case errors.Is(err, service.ErrBatchTooLarge):
		writeError(c, http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE", "Too many service requests", err.Error())
		return
	case err != nil:
		h.Logger.Error().Err(err).Str("run_id", out.RunID).Msg("batch failed")
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Processing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} models.Run
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	run, err := h.Store.GetLatestRun(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "No runs found")
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary Run details
// @Tags runs
// @Produce json
// @Param id path string true "Run id"
// @Success 200 {object} models.Run
// @Router /api/runs/{id} [get]
func (h *Handler) RunDetails(c *gin.Context) {
	run, err := h.Store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Run not found")
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid request body", err.Error())
		return false
	}
	if err := h.Validator.Struct(dst); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, strings.ToLower(fe.Field())+": "+fe.Tag())
	}
	return out
}

func (h *Handler) storeError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", notFound, nil)
		return
	}
	h.Logger.Error().Err(err).Msg("store error")
	writeError(c, http.StatusInternalServerError, "DB_ERROR", "Database error", err.Error())
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
