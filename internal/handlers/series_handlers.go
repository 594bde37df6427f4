package handlers

import (
	"net/http"
	"time"

	"github.com/creasty/defaults"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/services"
	"github.com/gin-gonic/gin"
)

// SeriesHandler serves stored prices merged with predictions
type SeriesHandler struct {
	querySvc *services.QueryService
}

// NewSeriesHandler creates a new SeriesHandler
func NewSeriesHandler(querySvc *services.QueryService) *SeriesHandler {
	return &SeriesHandler{
		querySvc: querySvc,
	}
}

// PostData handles POST /data
// @Summary Get series
// @Description Stored daily prices for an asset within [start_date, end_date], with predicted values attached per date
// @Tags series
// @Accept json
// @Produce json
// @Param request body models.SeriesRequest true "Series window"
// @Success 200 {object} models.SeriesResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /data [post]
func (h *SeriesHandler) PostData(c *gin.Context) {
	var req models.SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := defaults.Set(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		badRequest(c, "start_date and end_date are required")
		return
	}

	h.serve(c, req.Symbol, req.StartDate.Time, req.EndDate.Time, *req.IncludePredictions)
}

// GetSeries handles GET /assets/:symbol/series
// @Summary Get series
// @Description Stored daily prices for an asset within [start_date, end_date], with predicted values attached per date
// @Tags series
// @Produce json
// @Param symbol path string true "Asset symbol"
// @Param start_date query string true "Start date (YYYY-MM-DD)"
// @Param end_date query string true "End date (YYYY-MM-DD)"
// @Param include_predictions query bool false "Attach predicted values (default true)"
// @Success 200 {object} models.SeriesResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /assets/{symbol}/series [get]
func (h *SeriesHandler) GetSeries(c *gin.Context) {
	var q models.SeriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := defaults.Set(&q); err != nil {
		badRequest(c, err.Error())
		return
	}

	start, err := models.ParseDate(q.StartDate)
	if err != nil {
		badRequest(c, "start_date must be in YYYY-MM-DD format")
		return
	}
	end, err := models.ParseDate(q.EndDate)
	if err != nil {
		badRequest(c, "end_date must be in YYYY-MM-DD format")
		return
	}

	h.serve(c, c.Param("symbol"), start, end, *q.IncludePredictions)
}

func (h *SeriesHandler) serve(c *gin.Context, symbol string, start, end time.Time, includePredictions bool) {
	ctx, wc := services.NewWarningContext(c.Request.Context())

	series, err := h.querySvc.GetSeries(ctx, symbol, start, end, includePredictions)
	if err != nil {
		respondError(c, err)
		return
	}

	series.Warnings = wc.GetWarnings()
	c.JSON(http.StatusOK, series)
}
