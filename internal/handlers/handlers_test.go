package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
	"github.com/codebuildervaibhav/discussion-analysis/internal/queue"
	"github.com/codebuildervaibhav/discussion-analysis/internal/storage"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs map[string]*queue.Job
	err  error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]*queue.Job{}}
}

func (q *fakeQueue) EnqueueJob(job *queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = job
	return nil
}

func (q *fakeQueue) GetJob(id string) (*queue.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	return job, ok
}

func (q *fakeQueue) Jobs() []queue.JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.JobStatus
	for _, j := range q.jobs {
		out = append(out, j.Status())
	}
	return out
}

type fakeSnapshots struct {
	snaps []storage.Snapshot
}

func (f fakeSnapshots) List(runID string) ([]storage.Snapshot, error) {
	return f.snaps, nil
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("name", "weekly sync"); err != nil {
		t.Fatal(err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

func TestAnalyzeHandler(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		content    []byte
		queueErr   error
		wantStatus int
		wantCode   string
	}{
		{name: "accepted", filename: "meeting.wav", content: []byte("RIFF"), wantStatus: fiber.StatusAccepted},
		{name: "bad format", filename: "notes.txt", content: []byte("x"), wantStatus: fiber.StatusBadRequest, wantCode: "ERR_INVALID_FORMAT"},
		{name: "too large", filename: "big.mp3", content: bytes.Repeat([]byte("a"), 2*1024*1024), wantStatus: fiber.StatusBadRequest, wantCode: "ERR_FILE_TOO_LARGE"},
		{name: "queue full", filename: "meeting.wav", content: []byte("RIFF"), queueErr: queue.ErrQueueFull, wantStatus: fiber.StatusServiceUnavailable, wantCode: "ERR_QUEUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQueue()
			q.err = tt.queueErr
			tempDir := t.TempDir()
			app := fiber.New(fiber.Config{BodyLimit: 16 * 1024 * 1024})
			app.Post("/analyze", NewAnalyzeHandler(q, tempDir, 1).Handle)

			resp, err := app.Test(uploadRequest(t, tt.filename, tt.content), -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body map[string]any
			decode(t, resp, &body)
			if tt.wantCode != "" {
				if body["code"] != tt.wantCode {
					t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
				}
				entries, _ := os.ReadDir(tempDir)
				if len(entries) != 0 {
					t.Errorf("temp dir holds %d files after rejection", len(entries))
				}
				return
			}

			id, _ := body["job_id"].(string)
			job, ok := q.GetJob(id)
			if !ok {
				t.Fatalf("job %q was not enqueued", id)
			}
			if job.RequestName != "weekly sync" || job.SourceType != types.SourceUpload {
				t.Errorf("job = %+v", job)
			}
			if filepath.Ext(job.FilePath) != ".wav" {
				t.Errorf("FilePath = %q, want .wav extension", job.FilePath)
			}
			if _, err := os.Stat(job.FilePath); err != nil {
				t.Errorf("uploaded file missing: %v", err)
			}
		})
	}
}

func TestAnalyzeHandlerNoFile(t *testing.T) {
	app := fiber.New()
	app.Post("/analyze", NewAnalyzeHandler(newFakeQueue(), t.TempDir(), 1).Handle)

	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["code"] != "ERR_NO_FILE" {
		t.Errorf("code = %v, want ERR_NO_FILE", body["code"])
	}
}

func TestJobsHandler(t *testing.T) {
	q := newFakeQueue()
	job := queue.NewJob("job-1", "sync", types.SourceUpload, "/tmp/job-1.wav")
	q.EnqueueJob(job)

	snaps := fakeSnapshots{snaps: []storage.Snapshot{{RunID: "job-1", Stage: "AUDIO_DONE"}}}
	h := NewJobsHandler(q, snaps)
	app := fiber.New()
	app.Get("/jobs", h.List)
	app.Get("/jobs/:id", h.Get)
	app.Get("/jobs/:id/snapshots", h.Snapshots)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	var status queue.JobStatus
	decode(t, resp, &status)
	if status.ID != "job-1" || status.Status != types.StatusQueued {
		t.Errorf("status = %+v", status)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/jobs/missing", nil), -1)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/jobs/job-1/snapshots", nil), -1)
	var got []storage.Snapshot
	decode(t, resp, &got)
	if len(got) != 1 || got[0].Stage != "AUDIO_DONE" {
		t.Errorf("snapshots = %+v", got)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/jobs", nil), -1)
	var all []queue.JobStatus
	decode(t, resp, &all)
	if len(all) != 1 {
		t.Errorf("len(jobs) = %d, want 1", len(all))
	}
}

type recordingsFixture struct {
	app     *fiber.App
	session *dao.Session
	files   *storage.LocalStorage
}

func newRecordingsFixture(t *testing.T) *recordingsFixture {
	t.Helper()
	d, err := dao.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("dao.Open: %v", err)
	}
	files, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	seed := d.NewSession()
	t.Cleanup(func() {
		seed.Close()
		d.Close()
	})

	h := NewRecordingsHandler(func() dao.DataAccess { return d.NewSession() }, files)
	app := fiber.New()
	app.Get("/recordings", h.List)
	app.Get("/recordings/:id", h.Get)
	app.Get("/recordings/:id/transcription", h.Transcription)
	app.Get("/recordings/:id/sentiment", h.Sentiment)
	app.Get("/recordings/:id/report", h.Report)
	app.Get("/recordings/:id/versions", h.Versions)
	return &recordingsFixture{app: app, session: seed, files: files}
}

func (f *recordingsFixture) get(t *testing.T, target string) *http.Response {
	t.Helper()
	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	return resp
}

func seedRecording(t *testing.T, s *dao.Session) {
	t.Helper()
	ctx := context.Background()
	rec := types.Recording{
		RecordingID:   "rec-1",
		FilePath:      "/data/audio/rec-1.wav",
		Duration:      60,
		RecordingDate: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Format:        "wav",
	}
	if err := s.StoreRecording(ctx, rec); err != nil {
		t.Fatal(err)
	}
	segments := []types.TranscriptionSegment{
		{Text: "hello", Start: 0, End: 5, Speaker: "Speaker1", Confidence: 0.9},
		{Text: "budget", Start: 10, End: 15, Speaker: "Speaker2", Confidence: 0.8},
		{Text: "done", Start: 50, End: 55, Speaker: "Speaker1", Confidence: 0.95},
	}
	if err := s.StoreTranscription(ctx, "rec-1", segments); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreTopic(ctx, "rec-1", types.Topic{Name: "Budget", StartTime: 0, EndTime: 60}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StoreSentiment(ctx, "rec-1", types.SentimentResult{SpeakerID: "Speaker1", Timestamp: 2.5, SentimentScore: 0.5, Text: "hello"}); err != nil {
		t.Fatal(err)
	}
}

func TestRecordingsHandler(t *testing.T) {
	f := newRecordingsFixture(t)
	seedRecording(t, f.session)

	var recs []types.Recording
	decode(t, f.get(t, "/recordings"), &recs)
	if len(recs) != 1 || recs[0].RecordingID != "rec-1" {
		t.Errorf("recordings = %+v", recs)
	}

	var summary dao.DiscussionSummary
	decode(t, f.get(t, "/recordings/rec-1"), &summary)
	if len(summary.Topics) != 1 || summary.Topics[0].Name != "Budget" {
		t.Errorf("summary topics = %+v", summary.Topics)
	}

	var segments []types.TranscriptionSegment
	decode(t, f.get(t, "/recordings/rec-1/transcription?start=8&end=20"), &segments)
	if len(segments) != 1 || segments[0].Text != "budget" {
		t.Errorf("windowed segments = %+v", segments)
	}

	var sentiment types.SentimentSummary
	decode(t, f.get(t, "/recordings/rec-1/sentiment"), &sentiment)
	if sentiment.OverallSentiment != 0.5 {
		t.Errorf("overall = %v, want 0.5", sentiment.OverallSentiment)
	}
}

func TestRecordingsHandlerErrors(t *testing.T) {
	f := newRecordingsFixture(t)
	seedRecording(t, f.session)

	tests := []struct {
		target string
		want   int
	}{
		{"/recordings/missing", fiber.StatusNotFound},
		{"/recordings/missing/transcription", fiber.StatusNotFound},
		{"/recordings/missing/sentiment", fiber.StatusNotFound},
		{"/recordings/rec-1/transcription?start=abc", fiber.StatusBadRequest},
		{"/recordings/rec-1/report", fiber.StatusNotFound},
		{"/recordings/rec-1/report?format=docx", fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp := f.get(t, tt.target)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRecordingsHandlerReport(t *testing.T) {
	f := newRecordingsFixture(t)
	if _, err := f.files.StoreReport("rec-1", []byte("<html>Budget</html>"), "html"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.files.AddReportFormat("rec-1", []byte("Budget summary"), "txt"); err != nil {
		t.Fatal(err)
	}

	resp := f.get(t, "/recordings/rec-1/report?format=txt")
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Budget summary" {
		t.Errorf("body = %q", body)
	}

	var versions []string
	decode(t, f.get(t, "/recordings/rec-1/versions"), &versions)
	if len(versions) != 1 {
		t.Errorf("versions = %v, want one", versions)
	}
}
