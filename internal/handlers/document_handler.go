package handlers

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/crewhire/onboarding-backend/internal/middleware"
	"github.com/crewhire/onboarding-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler handles document upload and download
type DocumentHandler struct {
	documents *services.DocumentService
	logger    *logrus.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents *services.DocumentService, logger *logrus.Logger) *DocumentHandler {
	return &DocumentHandler{documents: documents, logger: logger}
}

// Upload handles POST /api/v1/onboarding/:id/upload.
// Each multipart file field is named after the document slot it fills.
func (h *DocumentHandler) Upload(c *gin.Context) {
	candidate, ok := candidateFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Room for every known slot at the size cap plus form overhead.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 8*h.documents.MaxBytes()+1<<20)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Expected a multipart form with document files",
			Code:    "INVALID_REQUEST",
		})
		return
	}

	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)

	uploads := make([]services.Upload, 0, len(names))
	for _, name := range names {
		header := form.File[name][0]
		file, err := header.Open()
		if err != nil {
			respondError(c, h.logger, fmt.Errorf("failed to open upload %s: %w", name, err))
			return
		}
		defer file.Close()

		uploads = append(uploads, services.Upload{
			Name:        name,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
	}

	docs, err := h.documents.Upload(c.Request.Context(), id, candidate.Phone, uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"application_id": id,
		"documents":      names,
	}).Info("Documents uploaded")
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// List handles GET /api/v1/onboarding/:id/documents
func (h *DocumentHandler) List(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	docs, err := h.documents.List(c.Request.Context(), userCtx.Actor(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Download handles GET /api/v1/onboarding/:id/documents/:name
func (h *DocumentHandler) Download(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, body, err := h.documents.Open(c.Request.Context(), userCtx.Actor(), id, c.Param("name"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", doc.ContentType)
	c.Header("Content-Length", strconv.FormatInt(doc.Size, 10))
	c.Header("Cache-Control", "private, no-store")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		h.logger.WithError(err).WithField("object_key", doc.ObjectKey).Warn("Document stream interrupted")
	}
}
