package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
	"github.com/codebuildervaibhav/discussion-analysis/internal/pipeline"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

type fakeSession struct {
	dao.DataAccess
	closed atomic.Int32
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	return nil
}

type fakeRunner struct {
	fn func(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error)
}

func (r fakeRunner) Execute(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error) {
	return r.fn(ctx, path, ro)
}

type poolFixture struct {
	pool     *WorkerPool
	mu       sync.Mutex
	sessions []*fakeSession
	stores   []dao.DataAccess
}

func newPool(t *testing.T, workers int, fn func(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error)) *poolFixture {
	t.Helper()
	f := &poolFixture{}
	f.pool = NewWorkerPool(workers, 4,
		func() dao.DataAccess {
			s := &fakeSession{}
			f.mu.Lock()
			f.sessions = append(f.sessions, s)
			f.mu.Unlock()
			return s
		},
		func(store dao.DataAccess) (Runner, error) {
			f.mu.Lock()
			f.stores = append(f.stores, store)
			f.mu.Unlock()
			return fakeRunner{fn: fn}, nil
		})
	f.pool.Start()
	t.Cleanup(f.pool.Stop)
	return f
}

func tempUpload(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "upload.wav")
	if err := os.WriteFile(p, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func waitDone(t *testing.T, job *Job) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !job.Done() {
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not finish: %+v", job.ID, job.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}
	return job.Status()
}

func TestWorkerPoolCompletesJob(t *testing.T) {
	f := newPool(t, 1, func(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error) {
		ro.OnState(pipeline.StateStart)
		ro.Progress(0.5, "transcribing")
		ro.OnState(pipeline.StateDone)
		return &pipeline.Result{RunID: ro.RunID, RecordingID: "rec-1", ReportPath: "/r/report.html"}, nil
	})

	upload := tempUpload(t)
	job := NewJob("job-1", "weekly", types.SourceUpload, upload)
	events, cancel := job.Subscribe()
	defer cancel()

	if err := f.pool.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	status := waitDone(t, job)

	if status.Status != types.StatusCompleted || status.Progress != 1 || status.State != string(pipeline.StateDone) {
		t.Errorf("status = %+v", status)
	}
	if status.Result == nil || status.Result.RunID != "job-1" {
		t.Errorf("result = %+v, want run id = job id", status.Result)
	}
	if _, err := os.Stat(upload); !os.IsNotExist(err) {
		t.Errorf("upload not cleaned up: %v", err)
	}
	if got, ok := f.pool.GetJob("job-1"); !ok || got != job {
		t.Error("GetJob did not find the job")
	}

	var last Event
	for e := range events {
		last = e
	}
	if last.Status != types.StatusCompleted || last.ReportPath != "/r/report.html" {
		t.Errorf("last event = %+v", last)
	}
}

func TestWorkerPoolRecordsFailure(t *testing.T) {
	runErr := errors.New("topic analysis failed")
	f := newPool(t, 1, func(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error) {
		ro.OnState(pipeline.StateStart)
		ro.OnState(pipeline.StateTranscriptionStored)
		ro.OnState(pipeline.StateFailed)
		return nil, runErr
	})

	job := NewJob("job-2", "x", types.SourceUpload, tempUpload(t))
	if err := f.pool.EnqueueJob(job); err != nil {
		t.Fatal(err)
	}
	status := waitDone(t, job)
	if status.Status != types.StatusFailed || status.Error != runErr.Error() {
		t.Errorf("status = %+v", status)
	}
	if status.FailedAfter != string(pipeline.StateTranscriptionStored) {
		t.Errorf("FailedAfter = %q, want TRANSCRIPTION_STORED", status.FailedAfter)
	}
	if !errors.Is(job.Err(), runErr) {
		t.Errorf("Err = %v", job.Err())
	}
}

func TestWorkerPoolRecoversPanic(t *testing.T) {
	var calls atomic.Int32
	f := newPool(t, 1, func(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error) {
		if calls.Add(1) == 1 {
			panic("nil map")
		}
		return &pipeline.Result{ReportPath: "ok"}, nil
	})

	first := NewJob("job-p", "x", types.SourceUpload, tempUpload(t))
	second := NewJob("job-q", "x", types.SourceUpload, tempUpload(t))
	for _, j := range []*Job{first, second} {
		if err := f.pool.EnqueueJob(j); err != nil {
			t.Fatal(err)
		}
	}
	if s := waitDone(t, first); s.Status != types.StatusFailed {
		t.Errorf("panicking job status = %s", s.Status)
	}
	if s := waitDone(t, second); s.Status != types.StatusCompleted {
		t.Errorf("worker did not survive the panic: %+v", s)
	}
}

func TestWorkersUseOwnSessions(t *testing.T) {
	f := newPool(t, 3, func(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error) {
		return &pipeline.Result{}, nil
	})
	deadline := time.Now().Add(5 * time.Second)
	for {
		f.mu.Lock()
		n := len(f.stores)
		f.mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d workers built runners", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	seen := map[dao.DataAccess]bool{}
	for _, s := range f.stores {
		if seen[s] {
			t.Error("two workers share a session")
		}
		seen[s] = true
	}

	f.pool.Stop()
	for i, s := range f.sessions {
		if s.closed.Load() != 1 {
			t.Errorf("session %d closed %d times", i, s.closed.Load())
		}
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	f := newPool(t, 1, func(ctx context.Context, path string, ro pipeline.RunOptions) (*pipeline.Result, error) {
		return &pipeline.Result{}, nil
	})
	f.pool.Stop()
	if err := f.pool.EnqueueJob(NewJob("late", "x", types.SourceUpload, "")); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("err = %v, want ErrPoolStopped", err)
	}
}

func TestSubscribeAfterCompletion(t *testing.T) {
	job := NewJob("done", "x", types.SourceUpload, "")
	job.complete(&pipeline.Result{ReportPath: "/r.html"})

	events, cancel := job.Subscribe()
	defer cancel()
	e, ok := <-events
	if !ok || e.Status != types.StatusCompleted {
		t.Fatalf("first event = %+v, %v", e, ok)
	}
	if _, ok := <-events; ok {
		t.Error("channel of a finished job should be closed")
	}
}
