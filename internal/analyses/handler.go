package analyses

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"patentvision-backend/internal/shared/server/middleware"
	"patentvision-backend/internal/shared/server/respond"
)

const maxUploadSize = 20 << 20 // 20MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.create)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.GET("/analyses/:id/media/:kind", h.media)
}

func (h *Handler) create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	if err := c.Request.ParseMultipartForm(maxUploadSize); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid multipart form", nil)
		return
	}

	input := CreateInput{
		Persona:  strings.TrimSpace(c.PostForm("persona")),
		Question: strings.TrimSpace(c.PostForm("question")),
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		input.Document = &Document{
			Data:     data,
			FileName: fileHeader.Filename,
			MimeType: fileHeader.Header.Get("Content-Type"),
		}
	}

	if raw := c.PostForm("links"); raw != "" {
		var links []LinkItem
		if err := json.Unmarshal([]byte(raw), &links); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "links must be a JSON array", nil)
			return
		}
		input.Links = links
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.Create(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoContent):
			respond.Error(c, http.StatusBadRequest, "validation_error", "a document or at least one link with text is required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create analysis", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.Accepted(c, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) get(c *gin.Context) {
	c.Set("analysisId", c.Param("id"))
	analysis, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(analysis))
}

func (h *Handler) list(c *gin.Context) {
	limit := 5
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	analyses, err := h.Svc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		resp = append(resp, gin.H{
			"analysisId": a.ID,
			"persona":    a.Persona,
			"summary":    a.Summary,
			"imageUrl":   a.ImageURL,
			"status":     a.Status,
			"createdAt":  a.CreatedAt,
		})
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) media(c *gin.Context) {
	c.Set("analysisId", c.Param("id"))
	kind := c.Param("kind")
	if kind != MediaKindImage && kind != MediaKindAudio {
		respond.Error(c, http.StatusNotFound, "not_found", "unknown media kind", nil)
		return
	}

	body, err := h.Svc.OpenMedia(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "media not found", nil)
		default:
			respond.Error(c, http.StatusBadGateway, "storage_error", "failed to fetch media", nil)
		}
		return
	}
	defer body.Close()

	// Sniff the content type from the stored bytes rather than trusting any
	// stored metadata.
	head := make([]byte, 512)
	n, readErr := io.ReadFull(body, head)
	if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		respond.Error(c, http.StatusBadGateway, "storage_error", "failed to read media", nil)
		return
	}
	head = head[:n]

	c.Header("Content-Type", http.DetectContentType(head))
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	if _, err := c.Writer.Write(head); err != nil {
		return
	}
	_, _ = io.Copy(c.Writer, body)
}
