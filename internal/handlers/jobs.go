package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/storage"
)

// SnapshotLister reads the debug snapshots of a pipeline run.
type SnapshotLister interface {
	List(runID string) ([]storage.Snapshot, error)
}

// JobsHandler reports job status over HTTP and WebSocket
type JobsHandler struct {
	jobs      JobQueue
	snapshots SnapshotLister
}

func NewJobsHandler(jobs JobQueue, snapshots SnapshotLister) *JobsHandler {
	return &JobsHandler{jobs: jobs, snapshots: snapshots}
}

func jobNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Job not found",
		"code":  "ERR_NOT_FOUND",
	})
}

func (h *JobsHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.jobs.Jobs())
}

func (h *JobsHandler) Get(c *fiber.Ctx) error {
	job, ok := h.jobs.GetJob(c.Params("id"))
	if !ok {
		return jobNotFound(c)
	}
	return c.JSON(job.Status())
}

// Snapshots lists the stage snapshots of a job; the job id is the run id.
func (h *JobsHandler) Snapshots(c *fiber.Ctx) error {
	if h.snapshots == nil {
		return c.JSON([]storage.Snapshot{})
	}
	id := c.Params("id")
	if _, ok := h.jobs.GetJob(id); !ok {
		return jobNotFound(c)
	}
	snaps, err := h.snapshots.List(id)
	if err != nil {
		return internalError(c, "ERR_SNAPSHOTS", err)
	}
	if snaps == nil {
		snaps = []storage.Snapshot{}
	}
	return c.JSON(snaps)
}

// Upgrade rejects non-WebSocket requests on WebSocket routes.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream pushes job events until the job finishes or the client leaves.
func (h *JobsHandler) Stream(c *websocket.Conn) {
	defer c.Close()

	id := c.Params("id")
	job, ok := h.jobs.GetJob(id)
	if !ok {
		c.WriteJSON(fiber.Map{"error": "Job not found", "code": "ERR_NOT_FOUND"})
		return
	}

	events, cancel := job.Subscribe()
	defer cancel()
	for e := range events {
		if err := c.WriteJSON(e); err != nil {
			logger.Debug("WebSocket write failed", "job_id", id, "err", err)
			return
		}
	}
}
