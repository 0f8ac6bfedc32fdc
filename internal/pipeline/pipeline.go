// Package pipeline sequences audio processing, analysis, persistence and
// report generation for one recording.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/discussion-analysis/internal/analysis"
	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/report"
	"github.com/codebuildervaibhav/discussion-analysis/internal/storage"
	"github.com/codebuildervaibhav/discussion-analysis/internal/transcription"
	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// diagnosticLines is how many transcript lines are logged when topic
// analysis fails.
const diagnosticLines = 5

type AudioProcessor interface {
	Process(ctx context.Context, audioPath string, cfg transcription.ProcessingConfig, progress transcription.ProgressFunc) (*types.ProcessingResult, error)
}

type TopicAnalyzer interface {
	Analyze(ctx context.Context, segments []types.TranscriptionSegment) (*types.TopicAnalysisResult, error)
}

type SentimentAnalyzer interface {
	Analyze(ctx context.Context, segments []types.TranscriptionSegment) (*types.SentimentSummary, error)
}

// FileStore is the subset of storage.LocalStorage the pipeline writes to.
type FileStore interface {
	StoreAudio(path, format string) (string, error)
	GetAudio(fileID string) (string, error)
	StoreReport(reportID string, content []byte, format string) (string, error)
	AddReportFormat(reportID string, content []byte, format string) (string, error)
	CleanupOldReports(reportID string, keep int) (int, error)
}

type ReportGenerator interface {
	Generate(data *report.DiscussionData, outputDir string) (string, error)
	RenderText(data *report.DiscussionData) ([]byte, error)
}

type PDFRenderer interface {
	Render(ctx context.Context, htmlPath string) ([]byte, error)
}

type Snapshotter interface {
	Save(runID, stage string, v any) error
}

// Deps are the collaborators of a pipeline. Sentiment, PDF, Snapshots and
// Archiver are optional.
type Deps struct {
	Audio     AudioProcessor
	Topics    TopicAnalyzer
	Sentiment SentimentAnalyzer
	Store     dao.DataAccess
	Files     FileStore
	Reports   ReportGenerator
	PDF       PDFRenderer
	Snapshots Snapshotter
	Archiver  storage.Archiver
}

// Options are fixed per pipeline.
type Options struct {
	Audio           transcription.ProcessingConfig
	ReportDir       string
	Formats         []string
	KeepVersions    int
	ArchiveAttempts int
}

// RunOptions are per run. All fields are optional.
type RunOptions struct {
	RunID    string
	Name     string
	Progress Progress
	// OnState is called on every state transition, including FAILED.
	OnState func(State)
}

// Result describes a successful run.
type Result struct {
	RunID       string                     `json:"run_id"`
	RecordingID string                     `json:"recording_id"`
	ReportPath  string                     `json:"report_path"`
	Reports     map[string]string          `json:"reports"`
	Topics      *types.TopicAnalysisResult `json:"topics"`
	Sentiment   *types.SentimentSummary    `json:"sentiment,omitempty"`
	ArchiveURL  string                     `json:"archive_url,omitempty"`

	// workingHTML is the unversioned report written by the generator.
	workingHTML string
}

type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Audio == nil:
		return nil, errors.New("pipeline: audio processor is required")
	case deps.Topics == nil:
		return nil, errors.New("pipeline: topic analyzer is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: data access is required")
	case deps.Files == nil:
		return nil, errors.New("pipeline: file store is required")
	case deps.Reports == nil:
		return nil, errors.New("pipeline: report generator is required")
	}
	if opts.ReportDir == "" {
		opts.ReportDir = os.TempDir()
	}
	if opts.ArchiveAttempts <= 0 {
		opts.ArchiveAttempts = 3
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now}, nil
}

// Run processes audioPath end to end and returns the stored report path.
// Errors from any stage are returned unchanged.
func (p *Pipeline) Run(ctx context.Context, audioPath string, ro RunOptions) (string, error) {
	res, err := p.Execute(ctx, audioPath, ro)
	if err != nil {
		return "", err
	}
	return res.ReportPath, nil
}

// run carries the state of one execution.
type run struct {
	p     *Pipeline
	id    string
	ro    RunOptions
	state State
}

func (r *run) enter(s State) {
	r.state = s
	if r.ro.OnState != nil {
		r.ro.OnState(s)
	}
	if pct, ok := checkpoints[s]; ok {
		r.progress(pct, strings.ToLower(string(s)))
	}
	logger.Debug("Pipeline state", "run_id", r.id, "state", s)
}

func (r *run) progress(pct float64, stage string) {
	if r.ro.Progress != nil {
		r.ro.Progress(pct, stage)
	}
}

// fail logs err with the last reached state and returns it unchanged.
func (r *run) fail(err error) error {
	logger.Error("Pipeline failed", "run_id", r.id, "after", r.state, "err", err)
	r.state = StateFailed
	if r.ro.OnState != nil {
		r.ro.OnState(StateFailed)
	}
	return err
}

// snapshot stores a debug copy of a stage output. Failures are only logged.
func (r *run) snapshot(stage string, v any) {
	if r.p.deps.Snapshots == nil {
		return
	}
	if err := r.p.deps.Snapshots.Save(r.id, stage, v); err != nil {
		logger.Warn("Snapshot failed", "run_id", r.id, "stage", stage, "err", err)
	}
}

// Execute is Run with the full result.
func (p *Pipeline) Execute(ctx context.Context, audioPath string, ro RunOptions) (*Result, error) {
	r := &run{p: p, id: ro.RunID, ro: ro}
	if r.id == "" {
		r.id = uuid.New().String()
	}
	d := p.deps

	r.enter(StateStart)
	logger.Info("Pipeline started", "run_id", r.id, "input", audioPath)
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	inputFormat := strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
	cfg := p.opts.Audio
	storable := storage.IsAudioFormat(inputFormat)
	if !storable {
		cfg.KeepProcessed = true
	}

	processed, err := d.Audio.Process(ctx, audioPath, cfg, func(pct float64, stage string) {
		r.progress(pct*audioShare, stage)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	if processed.ProcessedPath != "" {
		defer os.Remove(processed.ProcessedPath)
	}
	r.snapshot("audio_processed", processed)
	r.enter(StateAudioProcessed)

	rec, err := p.storeRecording(ctx, audioPath, inputFormat, storable, processed)
	if err != nil {
		return nil, r.fail(err)
	}
	r.snapshot("recording_stored", rec)
	r.enter(StateRecordingStored)

	if err := d.Store.StoreTranscription(ctx, rec.RecordingID, processed.TranscriptionSegments); err != nil {
		return nil, r.fail(err)
	}
	r.snapshot("transcription_stored", map[string]any{
		"recording_id": rec.RecordingID,
		"segments":     len(processed.TranscriptionSegments),
	})
	r.enter(StateTranscriptionStored)

	topics, err := d.Topics.Analyze(ctx, processed.TranscriptionSegments)
	if err != nil {
		logRecentTranscript(r.id, processed.TranscriptionSegments)
		return nil, r.fail(err)
	}
	r.snapshot("topics_analyzed", topics)
	r.enter(StateTopicsAnalyzed)

	var sentiment *types.SentimentSummary
	if d.Sentiment != nil {
		sentiment, err = d.Sentiment.Analyze(ctx, processed.TranscriptionSegments)
		if err != nil {
			return nil, r.fail(err)
		}
		if _, err := d.Store.StoreSentiments(ctx, rec.RecordingID, sentiment.SentimentTimeline); err != nil {
			return nil, r.fail(err)
		}
		r.snapshot("sentiment_analyzed", sentiment)
		r.enter(StateSentimentAnalyzed)
	}

	ids, err := d.Store.StoreTopics(ctx, rec.RecordingID, topics.Topics)
	if err != nil {
		return nil, r.fail(err)
	}
	for i := range ids {
		topics.Topics[i].TopicID = &ids[i]
	}
	r.snapshot("topics_stored", ids)
	r.enter(StateTopicsStored)

	data := &report.DiscussionData{
		Recording:     rec,
		Topics:        topics.Topics,
		Hierarchy:     topics.Hierarchy,
		Transcription: processed.TranscriptionSegments,
		Sentiment:     sentiment,
	}
	stored, working, err := p.generateReport(rec.RecordingID, data)
	if err != nil {
		return nil, r.fail(err)
	}
	r.snapshot("report_generated", map[string]string{"stored": stored, "working": working})
	r.enter(StateReportGenerated)

	result := &Result{
		RunID:       r.id,
		RecordingID: rec.RecordingID,
		ReportPath:  stored,
		Reports:     map[string]string{"html": stored},
		Topics:      topics,
		Sentiment:   sentiment,
		workingHTML: working,
	}
	p.postProcess(ctx, r, data, result, ro.Name)

	r.enter(StateDone)
	logger.Info("Pipeline completed", "run_id", r.id, "recording_id", rec.RecordingID, "report", result.ReportPath)
	return result, nil
}

// storeRecording copies the audio into file storage and registers it. Inputs
// the store cannot hold are replaced by the preprocessed copy.
func (p *Pipeline) storeRecording(ctx context.Context, audioPath, format string, storable bool, processed *types.ProcessingResult) (*types.Recording, error) {
	src := audioPath
	if !storable {
		if processed.ProcessedPath == "" {
			return nil, &storage.InvalidFormatError{Format: format, Allowed: storage.AudioFormats}
		}
		src = processed.ProcessedPath
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), ".")
	}

	fileID, err := p.deps.Files.StoreAudio(src, format)
	if err != nil {
		return nil, err
	}
	stored, err := p.deps.Files.GetAudio(fileID)
	if err != nil {
		return nil, err
	}

	rec := &types.Recording{
		RecordingID:   fileID,
		FilePath:      stored,
		Duration:      processed.Metadata.Duration,
		RecordingDate: p.now().UTC(),
		Format:        format,
	}
	if err := p.deps.Store.StoreRecording(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// generateReport renders the HTML report and stores it as a new version.
func (p *Pipeline) generateReport(recordingID string, data *report.DiscussionData) (stored, working string, err error) {
	working, err = p.deps.Reports.Generate(data, filepath.Join(p.opts.ReportDir, recordingID))
	if err != nil {
		return "", "", err
	}
	html, err := os.ReadFile(working)
	if err != nil {
		return "", "", &report.GenerationError{Msg: "failed to read generated report", Err: err}
	}
	stored, err = p.deps.Files.StoreReport(recordingID, html, "html")
	if err != nil {
		return "", "", err
	}
	return stored, working, nil
}

// postProcess adds extra formats, prunes old versions and archives. None of
// it can fail the run.
func (p *Pipeline) postProcess(ctx context.Context, r *run, data *report.DiscussionData, result *Result, name string) {
	d := p.deps
	id := result.RecordingID

	for _, format := range p.opts.Formats {
		var content []byte
		var err error
		switch format {
		case "html":
			continue
		case "pdf":
			if d.PDF == nil {
				continue
			}
			content, err = d.PDF.Render(ctx, result.workingHTML)
		case "txt":
			content, err = d.Reports.RenderText(data)
		default:
			continue
		}
		if err == nil {
			result.Reports[format], err = d.Files.AddReportFormat(id, content, format)
		}
		if err != nil {
			logger.Warn("Extra report format failed", "run_id", r.id, "format", format, "err", err)
		}
	}

	if p.opts.KeepVersions > 0 {
		if removed, err := d.Files.CleanupOldReports(id, p.opts.KeepVersions); err != nil {
			logger.Warn("Report cleanup failed", "recording_id", id, "err", err)
		} else if removed > 0 {
			logger.Debug("Pruned report versions", "recording_id", id, "removed", removed)
		}
	}

	if d.Archiver != nil {
		if name == "" {
			name = id
		}
		files := make([]string, 0, len(result.Reports))
		for _, path := range result.Reports {
			files = append(files, path)
		}
		sort.Strings(files)
		item := storage.ArchiveItem{
			RecordingID: id,
			Name:        name,
			Files:       files,
			Summary:     archiveSummary(result),
			CreatedAt:   p.now(),
		}
		url, err := storage.ArchiveWithRetry(ctx, d.Archiver, item, p.opts.ArchiveAttempts)
		if err != nil {
			logger.Warn("Archive failed, keeping local reports only", "recording_id", id, "err", err)
		} else {
			result.ArchiveURL = url
		}
	}
}

func archiveSummary(result *Result) map[string]any {
	summary := map[string]any{
		"run_id": result.RunID,
		"topics": result.Topics.Names(),
	}
	if result.Sentiment != nil {
		summary["overall_sentiment"] = result.Sentiment.OverallSentiment
		summary["speaker_sentiments"] = result.Sentiment.SpeakerSentiments
	}
	return summary
}

func logRecentTranscript(runID string, segments []types.TranscriptionSegment) {
	start := max(0, len(segments)-diagnosticLines)
	lines := make([]string, 0, diagnosticLines)
	for _, seg := range segments[start:] {
		lines = append(lines, analysis.TranscriptLine(seg))
	}
	logger.Error("Topic analysis failed; last transcript lines follow",
		"run_id", runID, "lines", len(segments), "tail", "\n"+strings.Join(lines, "\n"))
}
