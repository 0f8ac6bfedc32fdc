package handlers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/queue"
	"github.com/codebuildervaibhav/discussion-analysis/internal/transcription"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// JobQueue is the part of queue.WorkerPool the handlers use.
type JobQueue interface {
	EnqueueJob(job *queue.Job) error
	GetJob(id string) (*queue.Job, bool)
	Jobs() []queue.JobStatus
}

// AnalyzeHandler accepts audio uploads and queues an analysis job
type AnalyzeHandler struct {
	jobs      JobQueue
	tempDir   string
	maxSizeMB int
}

// NewAnalyzeHandler creates a new upload handler
func NewAnalyzeHandler(jobs JobQueue, tempDir string, maxSizeMB int) *AnalyzeHandler {
	return &AnalyzeHandler{
		jobs:      jobs,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
	}
}

// Handle processes the upload request
func (h *AnalyzeHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	requestName := c.FormValue("name")
	if requestName == "" {
		requestName = "untitled"
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if file.Size > maxSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	if !transcription.ValidateAudioFormat(file.Filename) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported audio format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	jobID := uuid.New().String()
	if err := os.MkdirAll(h.tempDir, 0755); err != nil {
		return internalError(c, "ERR_SAVE_FAILED", err)
	}
	tempPath := filepath.Join(h.tempDir, jobID+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		logger.Error("Failed to save uploaded file", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	job := queue.NewJob(jobID, requestName, types.SourceUpload, tempPath)
	if err := h.jobs.EnqueueJob(job); err != nil {
		os.Remove(tempPath)
		status := fiber.StatusInternalServerError
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrPoolStopped) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_QUEUE",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"status":  job.Status().Status,
		"message": "File uploaded successfully, analysis started",
	})
}
