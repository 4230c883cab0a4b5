package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/grievo/internal/api/middleware"
	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/service"
)

// ComplaintHandler handles complaint endpoints.
type ComplaintHandler struct {
	complaints  *service.ComplaintService
	attachments *service.AttachmentService
}

// NewComplaintHandler creates a new complaint handler. attachments may be nil
// when object storage is disabled.
// Parameters:
//   - complaints: lifecycle service.
//   - attachments: attachment service or nil.
//
// Returns:
//   - *ComplaintHandler: initialized handler.
func NewComplaintHandler(complaints *service.ComplaintService, attachments *service.AttachmentService) *ComplaintHandler {
	return &ComplaintHandler{complaints: complaints, attachments: attachments}
}

// ClassifyRequest accepts either text or transcriptText.
type ClassifyRequest struct {
	Text           string          `json:"text"`
	TranscriptText string          `json:"transcriptText"`
	Language       domain.Language `json:"language"`
}

func (r ClassifyRequest) text() string {
	if r.TranscriptText != "" {
		return r.TranscriptText
	}
	return r.Text
}

// CreateComplaintRequest is the body of POST /api/complaints.
type CreateComplaintRequest struct {
	ClassifyRequest
	Location *domain.Location `json:"location"`
}

// UpdateStatusRequest is the body of PATCH /api/complaints/:id/status.
type UpdateStatusRequest struct {
	Status  domain.Status `json:"status"`
	Message string        `json:"message"`
}

// Classify handles POST /api/complaints/classify.
func (h *ComplaintHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide transcript text")
		return
	}

	preview, err := h.complaints.Preview(c.Request.Context(), req.text(), req.Language)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Create handles POST /api/complaints.
func (h *ComplaintHandler) Create(c *gin.Context) {
	var req CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide transcript text and location")
		return
	}

	complaint, err := h.complaints.Create(c.Request.Context(), service.CreateComplaintInput{
		Text:     req.text(),
		Language: req.Language,
		Location: req.Location,
		OwnerID:  middleware.CurrentUser(c).ID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, complaint)
}

// List handles GET /api/complaints.
func (h *ComplaintHandler) List(c *gin.Context) {
	complaints, err := h.complaints.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if complaints == nil {
		complaints = []domain.Complaint{}
	}
	for i := range complaints {
		h.fillURLs(&complaints[i])
	}
	c.JSON(http.StatusOK, complaints)
}

// Mine handles GET /api/complaints/mine.
func (h *ComplaintHandler) Mine(c *gin.Context) {
	complaints, err := h.complaints.ListMine(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if complaints == nil {
		complaints = []domain.Complaint{}
	}
	for i := range complaints {
		h.fillURLs(&complaints[i])
	}
	c.JSON(http.StatusOK, complaints)
}

// Get handles GET /api/complaints/:id.
func (h *ComplaintHandler) Get(c *gin.Context) {
	complaint, err := h.complaints.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.fillURLs(complaint)
	c.JSON(http.StatusOK, complaint)
}

// UpdateStatus handles PATCH /api/complaints/:id/status.
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide a validation status")
		return
	}

	actor := middleware.CurrentUser(c).ID
	complaint, err := h.complaints.Transition(c.Request.Context(), c.Param("id"), req.Status, req.Message, &actor)
	if err != nil {
		writeError(c, err)
		return
	}
	h.fillURLs(complaint)
	c.JSON(http.StatusOK, complaint)
}

// AddAttachment handles POST /api/complaints/:id/attachments (multipart field "file").
func (h *ComplaintHandler) AddAttachment(c *gin.Context) {
	if h.attachments == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"message": "Attachments are not enabled"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "Please provide a file")
		return
	}
	if fileHeader.Size > h.attachments.MaxBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "File too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.attachments.MaxBytes()+1))
	if err != nil {
		badRequest(c, "Failed to read uploaded file")
		return
	}

	attachment, err := h.attachments.Add(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func (h *ComplaintHandler) fillURLs(complaint *domain.Complaint) {
	if h.attachments == nil {
		return
	}
	for i := range complaint.Attachments {
		complaint.Attachments[i].URL = h.attachments.URL(&complaint.Attachments[i])
	}
}
