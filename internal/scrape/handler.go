package scrape

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"patentvision-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the scrape service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches scrape routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scrape", h.scrape)
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (h *Handler) scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "url is required", nil)
		return
	}

	result, err := h.Svc.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "scrape_failed", "unable to scrape reference page", nil)
		return
	}

	respond.OK(c, result)
}
