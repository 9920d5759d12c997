package transport

import (
	"net/http"

	"heritage-atlas/internal/domain"
	"heritage-atlas/internal/middleware"
	"heritage-atlas/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type regionsResponse struct {
	Success bool                    `json:"success"`
	Regions []*domain.RegionSummary `json:"regions"`
}

type giTagsResponse struct {
	Success bool                   `json:"success"`
	GITags  []*domain.GITagSummary `json:"gi_tags"`
}

type regionGroupsResponse struct {
	Success bool                  `json:"success"`
	Regions []*domain.RegionGroup `json:"regions"`
}

type giTagGroupsResponse struct {
	Success bool                 `json:"success"`
	GITags  []*domain.GITagGroup `json:"gi_tags"`
}

type statisticsResponse struct {
	Success    bool               `json:"success"`
	Statistics *domain.Statistics `json:"statistics"`
}

// CatalogueHandler serves the region and GI tag views of the catalogue
type CatalogueHandler struct {
	catalogueService service.CatalogueService
	logger           *zap.Logger
}

// NewCatalogueHandler creates a new CatalogueHandler
func NewCatalogueHandler(catalogueService service.CatalogueService, logger *zap.Logger) *CatalogueHandler {
	return &CatalogueHandler{
		catalogueService: catalogueService,
		logger:           logger,
	}
}

// RegisterRoutes registers the catalogue routes. The grouped product routes
// sit beside /api/products/{id} and take precedence over it.
func (h *CatalogueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/regions", h.Regions)
	r.Get("/api/gi-tags", h.GITags)
	r.Get("/api/stats", h.Statistics)
	r.Get("/api/products/by-region", h.ProductsByRegion)
	r.Get("/api/products/by-gi-tag", h.ProductsByGITag)
}

// Regions handles GET /api/regions
func (h *CatalogueHandler) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.catalogueService.Regions(r.Context())
	if err != nil {
		h.fail(w, "Failed to list regions", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, regionsResponse{Success: true, Regions: regions})
}

// GITags handles GET /api/gi-tags
func (h *CatalogueHandler) GITags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.catalogueService.GITags(r.Context())
	if err != nil {
		h.fail(w, "Failed to list GI tags", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, giTagsResponse{Success: true, GITags: tags})
}

// ProductsByRegion handles GET /api/products/by-region
func (h *CatalogueHandler) ProductsByRegion(w http.ResponseWriter, r *http.Request) {
	groups, err := h.catalogueService.ProductsByRegion(r.Context())
	if err != nil {
		h.fail(w, "Failed to group products by region", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, regionGroupsResponse{Success: true, Regions: groups})
}

// ProductsByGITag handles GET /api/products/by-gi-tag
func (h *CatalogueHandler) ProductsByGITag(w http.ResponseWriter, r *http.Request) {
	groups, err := h.catalogueService.ProductsByGITag(r.Context())
	if err != nil {
		h.fail(w, "Failed to group products by GI tag", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, giTagGroupsResponse{Success: true, GITags: groups})
}

// Statistics handles GET /api/stats
func (h *CatalogueHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalogueService.Statistics(r.Context())
	if err != nil {
		h.fail(w, "Failed to load statistics", err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, statisticsResponse{Success: true, Statistics: stats})
}

func (h *CatalogueHandler) fail(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, message)
}
