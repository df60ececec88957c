package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shareledger/internal/api/middleware"
	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/service"
)

// IngestHandler handles upload and job status endpoints.
type IngestHandler struct {
	uploads  *service.UploadService
	jobs     jobstore.Store
	maxBytes int64
}

// NewIngestHandler creates a new ingest handler.
// Parameters:
//   - uploads: accepts files and enqueues jobs.
//   - jobs: job store read by the status endpoint.
//   - maxBytes: upload size limit for the whole request body.
// Returns:
//   - *IngestHandler: initialized handler.
func NewIngestHandler(uploads *service.UploadService, jobs jobstore.Store, maxBytes int64) *IngestHandler {
	return &IngestHandler{uploads: uploads, jobs: jobs, maxBytes: maxBytes}
}

// UploadResponse is returned when a file is accepted.
type UploadResponse struct {
	JobID    string          `json:"job_id"`
	State    domain.JobState `json:"state"`
	FileName string          `json:"file_name"`
}

// JobResult carries the outcome of a successful job.
type JobResult struct {
	RecordCount int `json:"record_count"`
}

// JobStatusResponse is a snapshot of one job.
type JobStatusResponse struct {
	JobID      string          `json:"job_id"`
	State      domain.JobState `json:"state"`
	Status     string          `json:"status,omitempty"`
	FileName   string          `json:"file_name"`
	Result     *JobResult      `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Upload handles POST /api/v1/uploads.
// Parameters:
//   - c: Gin request context; multipart form with a "file" field.
// Returns: none (writes 202 with the job id, or 400/413 without creating a job).
func (h *IngestHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		switch {
		case isTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		case errors.Is(err, http.ErrMissingFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		}
		return
	}
	if fileHeader.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()

	job, err := h.uploads.Submit(c.Request.Context(), fileHeader.Filename, f, fileHeader.Size, middleware.Identity(c))
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
		case errors.Is(err, service.ErrQueueClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service is shutting down"})
		default:
			middleware.GetLogger(c).WithError(err).Error("Failed to accept upload")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept upload"})
		}
		return
	}

	c.JSON(http.StatusAccepted, UploadResponse{
		JobID:    job.ID,
		State:    job.State,
		FileName: job.FileName,
	})
}

// Status handles GET /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes the job snapshot, or 404 for an unknown id).
func (h *IngestHandler) Status(c *gin.Context) {
	id := c.Param("id")
	job, err := h.jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to load job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return
	}

	c.JSON(http.StatusOK, newJobStatusResponse(job))
}

func newJobStatusResponse(job *domain.Job) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:      job.ID,
		State:      job.State,
		FileName:   job.FileName,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	switch job.State {
	case domain.JobStatePending:
		resp.Status = "Pending..."
	case domain.JobStateSuccess:
		resp.Result = &JobResult{RecordCount: job.RecordCount}
	case domain.JobStateFailure:
		resp.Error = job.Error
	}
	return resp
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
