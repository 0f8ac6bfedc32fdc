package queue

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/pipeline"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// Event is a job update pushed to subscribers.
type Event struct {
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	State      string    `json:"state"`
	Stage      string    `json:"stage"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	ReportPath string    `json:"report_path,omitempty"`
	Time       time.Time `json:"time"`
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	ID          string           `json:"job_id"`
	RequestName string           `json:"name"`
	SourceType  string           `json:"source"`
	Status      string           `json:"status"`
	State       string           `json:"state"`
	FailedAfter string           `json:"failed_after,omitempty"`
	Stage       string           `json:"stage"`
	Progress    float64          `json:"progress"`
	Error       string           `json:"error,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Job represents one analysis request
type Job struct {
	ID          string
	RequestName string
	SourceType  string
	FilePath    string
	CreatedAt   time.Time

	mu          sync.RWMutex
	status      string
	state       pipeline.State
	failedAfter pipeline.State
	stage       string
	progress    float64
	err         error
	result      *pipeline.Result
	updatedAt   time.Time
	subscribers map[int]chan Event
	nextSub     int
}

// NewJob creates a new job with default values
func NewJob(id, requestName, sourceType, filePath string) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		RequestName: requestName,
		SourceType:  sourceType,
		FilePath:    filePath,
		CreatedAt:   now,
		status:      types.StatusQueued,
		updatedAt:   now,
		subscribers: make(map[int]chan Event),
	}
}

func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	s := JobStatus{
		ID:          j.ID,
		RequestName: j.RequestName,
		SourceType:  j.SourceType,
		Status:      j.status,
		State:       string(j.state),
		FailedAfter: string(j.failedAfter),
		Stage:       j.stage,
		Progress:    j.progress,
		Result:      j.result,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.updatedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}

// Err returns the failure of the job, if any.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status == types.StatusCompleted || j.status == types.StatusFailed
}

// Subscribe returns a channel of updates and a cancel func. The current
// status is delivered first. Slow subscribers miss intermediate events.
func (j *Job) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	j.mu.Lock()
	id := j.nextSub
	j.nextSub++
	ch <- j.eventLocked()
	terminal := j.status == types.StatusCompleted || j.status == types.StatusFailed
	if terminal {
		close(ch)
	} else {
		j.subscribers[id] = ch
	}
	j.mu.Unlock()

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if sub, ok := j.subscribers[id]; ok {
			delete(j.subscribers, id)
			close(sub)
		}
	}
}

func (j *Job) eventLocked() Event {
	e := Event{
		JobID:    j.ID,
		Status:   j.status,
		State:    string(j.state),
		Stage:    j.stage,
		Progress: j.progress,
		Time:     j.updatedAt,
	}
	if j.err != nil {
		e.Error = j.err.Error()
	}
	if j.result != nil {
		e.ReportPath = j.result.ReportPath
	}
	return e
}

// update applies fn under the lock and broadcasts the new state.
func (j *Job) update(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn()
	j.updatedAt = time.Now()

	e := j.eventLocked()
	terminal := j.status == types.StatusCompleted || j.status == types.StatusFailed
	for id, ch := range j.subscribers {
		select {
		case ch <- e:
		default:
		}
		if terminal {
			delete(j.subscribers, id)
			close(ch)
		}
	}
}

func (j *Job) setProcessing() {
	j.update(func() { j.status = types.StatusProcessing })
}

func (j *Job) setState(s pipeline.State) {
	j.update(func() {
		if s == pipeline.StateFailed {
			j.failedAfter = j.state
		}
		j.state = s
	})
}

func (j *Job) setProgress(p float64, stage string) {
	j.update(func() {
		j.progress = p
		j.stage = stage
	})
}

func (j *Job) complete(res *pipeline.Result) {
	j.update(func() {
		j.status = types.StatusCompleted
		j.result = res
		j.progress = 1
	})
}

func (j *Job) fail(err error) {
	j.update(func() {
		j.status = types.StatusFailed
		j.err = err
	})
}
