package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/whistleblower-api/internal/dto"
	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/response"
)

const (
	evidenceFileField   = "file"
	evidenceReportField = "reportId"
	maxEvidenceFiles    = 10
)

type evidenceService interface {
	Attach(ctx context.Context, reportID string, upload dto.EvidenceUpload) (*models.Evidence, error)
	AttachMany(ctx context.Context, reportID string, uploads []dto.EvidenceUpload) (*dto.EvidenceBatchResponse, error)
	ListForReport(ctx context.Context, reportID string, actor *models.JWTClaims) ([]models.EvidenceWithURL, error)
	Download(ctx context.Context, id, token string) (*dto.EvidenceDownload, error)
}

// EvidenceHandler exposes evidence upload and retrieval endpoints.
type EvidenceHandler struct {
	evidence    evidenceService
	maxFileSize int64
}

// NewEvidenceHandler constructs handler. maxFileSize bounds the request body
// together with maxEvidenceFiles.
func NewEvidenceHandler(evidence evidenceService, maxFileSize int64) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence, maxFileSize: maxFileSize}
}

// Upload godoc
// @Summary Attach evidence to a report
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Param reportId formData string true "Report ID"
// @Param file formData file true "Evidence file (repeatable)"
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evidence/upload [post]
func (h *EvidenceHandler) Upload(c *gin.Context) {
	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize*maxEvidenceFiles+(1<<20))
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}
	defer form.RemoveAll() //nolint:errcheck

	reportID := firstValue(form.Value[evidenceReportField])
	files := form.File[evidenceFileField]
	switch {
	case reportID == "":
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "reportId is required"))
		return
	case len(files) == 0:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	case len(files) > maxEvidenceFiles:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at most "+strconv.Itoa(maxEvidenceFiles)+" files per upload"))
		return
	}

	uploads := make([]dto.EvidenceUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll(uploads)
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file"))
			return
		}
		uploads = append(uploads, toUpload(fh, f))
	}
	defer closeAll(uploads)

	if len(uploads) == 1 {
		evidence, err := h.evidence.Attach(c.Request.Context(), reportID, uploads[0])
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, evidence)
		return
	}

	batch, err := h.evidence.AttachMany(c.Request.Context(), reportID, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if batch.Failed > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, batch, nil)
}

// ListForReport godoc
// @Summary List evidence for a report
// @Tags Evidence
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id}/evidence [get]
func (h *EvidenceHandler) ListForReport(c *gin.Context) {
	items, err := h.evidence.ListForReport(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Download godoc
// @Summary Download an evidence file
// @Tags Evidence
// @Produce octet-stream
// @Param id path string true "Evidence ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evidence/{id}/download [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	download, err := h.evidence.Download(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Content.Close()

	response.Attachment(c, download.Evidence.FileName, download.Evidence.FileType, download.Evidence.SizeBytes, download.Content)
}

func toUpload(fh *multipart.FileHeader, f multipart.File) dto.EvidenceUpload {
	return dto.EvidenceUpload{
		Filename: fh.Filename,
		FileType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Content:  f,
	}
}

func closeAll(uploads []dto.EvidenceUpload) {
	for _, u := range uploads {
		if closer, ok := u.Content.(multipart.File); ok {
			_ = closer.Close()
		}
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
