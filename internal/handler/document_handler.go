package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/middleware"
	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/service"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/response"
)

// DocumentHandler exposes student document endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload godoc
// @Summary Upload student document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param student_id formData string true "Student ID"
// @Param kind formData string false "Document kind"
// @Param expires_at formData string false "Expiry date (YYYY-MM-DD)"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	input := service.UploadDocumentInput{
		StudentID:  c.PostForm("student_id"),
		Kind:       models.DocumentKind(c.PostForm("kind")),
		FileName:   fileHeader.Filename,
		MIMEType:   fileHeader.Header.Get("Content-Type"),
		SizeBytes:  fileHeader.Size,
		UploadedBy: claims.UserID,
		Body:       src,
	}
	if expires := c.PostForm("expires_at"); expires != "" {
		parsed, err := time.Parse("2006-01-02", expires)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid expires_at date"))
			return
		}
		input.ExpiresAt = &parsed
	}

	doc, err := h.documents.Upload(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param student_id query string false "Student ID"
// @Param kind query string false "Document kind"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var filter models.DocumentFilter
	filter.StudentID = c.Query("student_id")
	if kind := c.Query("kind"); kind != "" {
		k := models.DocumentKind(kind)
		filter.Kind = &k
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if !scopeToStudent(c, &filter.StudentID) {
		return
	}

	docs, pagination, err := h.documents.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// DownloadToken godoc
// @Summary Issue download token
// @Description Issue a time-limited signed download token for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/token [post]
func (h *DocumentHandler) DownloadToken(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		if doc.StudentID != c.GetString(middleware.ContextStudentKey) {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}
	token, expiresAt, err := h.documents.DownloadToken(c.Request.Context(), doc.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// Download godoc
// @Summary Download document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	doc, path, err := h.documents.ResolveToken(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", doc.FileName))
	c.Header("Cache-Control", "no-store")
	c.File(path)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
