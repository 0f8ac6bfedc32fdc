package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/pipeline"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Runner executes one pipeline run.
type Runner interface {
	Execute(ctx context.Context, audioPath string, ro pipeline.RunOptions) (*pipeline.Result, error)
}

// RunnerFactory builds the runner of one worker around its own DAO session.
type RunnerFactory func(store dao.DataAccess) (Runner, error)

// SessionFactory opens a DAO session for one worker.
type SessionFactory func() dao.DataAccess

// WorkerPool manages a pool of workers processing analysis jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	newSession  SessionFactory
	newRunner   RunnerFactory

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	jobs    map[string]*Job
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, newSession SessionFactory, newRunner RunnerFactory) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		newSession:  newSession,
		newRunner:   newRunner,
		ctx:         ctx,
		cancel:      cancel,
		jobs:        make(map[string]*Job),
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	logger.Info("Starting worker pool", "workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs, cancels running ones and waits for workers.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.cancel()
	wp.wg.Wait()
	logger.Info("Worker pool stopped")
}

// EnqueueJob adds a job to the queue
func (wp *WorkerPool) EnqueueJob(job *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrPoolStopped
	}
	select {
	case wp.jobQueue <- job:
	default:
		return ErrQueueFull
	}
	wp.jobs[job.ID] = job
	logger.Info("Job enqueued", "job_id", job.ID, "source", job.SourceType, "name", job.RequestName)
	return nil
}

// GetJob looks up a job by id.
func (wp *WorkerPool) GetJob(id string) (*Job, bool) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	job, ok := wp.jobs[id]
	return job, ok
}

// Jobs returns the status of every known job.
func (wp *WorkerPool) Jobs() []JobStatus {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	out := make([]JobStatus, 0, len(wp.jobs))
	for _, job := range wp.jobs {
		out = append(out, job.Status())
	}
	return out
}

// worker processes jobs from the queue with its own DAO session.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	logger.Debug("Worker started", "worker", id)

	session := wp.newSession()
	defer session.Close()

	runner, err := wp.newRunner(session)
	if err != nil {
		logger.Error("Worker could not build its pipeline", "worker", id, "err", err)
		runner = nil
	}

	for job := range wp.jobQueue {
		if runner == nil {
			job.fail(fmt.Errorf("worker %d unavailable: %w", id, err))
			wp.cleanupTempFile(job.FilePath)
			continue
		}
		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Worker panic",
						"worker", id, "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
					job.fail(fmt.Errorf("worker panic: %v", r))
					wp.cleanupTempFile(job.FilePath)
				}
			}()

			wp.processJob(id, runner, job)
		}()
	}
}

// processJob runs the analysis pipeline for one job
func (wp *WorkerPool) processJob(workerID int, runner Runner, job *Job) {
	logger.Info("Processing job", "worker", workerID, "job_id", job.ID)
	job.setProcessing()
	defer wp.cleanupTempFile(job.FilePath)

	res, err := runner.Execute(wp.ctx, job.FilePath, pipeline.RunOptions{
		RunID:    job.ID,
		Name:     job.RequestName,
		Progress: job.setProgress,
		OnState:  job.setState,
	})
	if err != nil {
		logger.Error("Job failed", "worker", workerID, "job_id", job.ID, "err", err)
		job.fail(err)
		return
	}

	job.complete(res)
	logger.Info("Job completed", "worker", workerID, "job_id", job.ID,
		"recording_id", res.RecordingID, "report", res.ReportPath)
}

// cleanupTempFile removes an uploaded file once its job is over
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to cleanup temp file", "path", filePath, "err", err)
	}
}
