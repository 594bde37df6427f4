package handlers

import (
	"net/http"

	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/services"
	"github.com/gin-gonic/gin"
)

// AssetHandler handles asset registration and lookup endpoints
type AssetHandler struct {
	assetSvc *services.AssetService
	querySvc *services.QueryService
}

// NewAssetHandler creates a new AssetHandler
func NewAssetHandler(assetSvc *services.AssetService, querySvc *services.QueryService) *AssetHandler {
	return &AssetHandler{
		assetSvc: assetSvc,
		querySvc: querySvc,
	}
}

// RequestAssets handles POST /assets
// @Summary Request assets
// @Description Register a list of symbols. Unknown symbols become pending assets and every symbol is queued for ingestion. One invalid element rejects the whole list.
// @Tags assets
// @Accept json
// @Produce json
// @Param request body []string true "Symbols to track"
// @Success 202 {object} models.RequestAssetsResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /assets [post]
func (h *AssetHandler) RequestAssets(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}

	symbols, err := services.ParseSymbolList(payload)
	if err != nil {
		respondError(c, err)
		return
	}

	assets, err := h.assetSvc.RequestAssets(c.Request.Context(), symbols)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.RequestAssetsResponse{
		Success: true,
		Assets:  assets,
	})
}

// ListSymbols handles GET /symbols
// @Summary List active symbols
// @Description Symbols of every asset that has reached the minimum history
// @Tags assets
// @Produce json
// @Success 200 {object} models.SymbolsResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /symbols [get]
func (h *AssetHandler) ListSymbols(c *gin.Context) {
	symbols, err := h.querySvc.ListActiveSymbols(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SymbolsResponse{Symbols: symbols})
}

// Get handles GET /assets/:symbol
// @Summary Get asset status
// @Description Asset lifecycle status, training state and current model
// @Tags assets
// @Produce json
// @Param symbol path string true "Asset symbol"
// @Success 200 {object} models.AssetStatusResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /assets/{symbol} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	status, err := h.querySvc.DescribeAsset(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Delete handles DELETE /assets/:symbol
// @Summary Delete asset
// @Description Remove an asset with its prices, models and predictions
// @Tags assets
// @Param symbol path string true "Asset symbol"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /assets/{symbol} [delete]
func (h *AssetHandler) Delete(c *gin.Context) {
	if err := h.assetSvc.DeleteAsset(c.Request.Context(), c.Param("symbol")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
