// Package app wires configuration into the running components shared by the
// server and the command line tool.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/analysis"
	"github.com/codebuildervaibhav/discussion-analysis/internal/config"
	"github.com/codebuildervaibhav/discussion-analysis/internal/dao"
	"github.com/codebuildervaibhav/discussion-analysis/internal/llm"
	"github.com/codebuildervaibhav/discussion-analysis/internal/llm/ollama"
	"github.com/codebuildervaibhav/discussion-analysis/internal/llm/openai"
	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
	"github.com/codebuildervaibhav/discussion-analysis/internal/pipeline"
	"github.com/codebuildervaibhav/discussion-analysis/internal/report"
	"github.com/codebuildervaibhav/discussion-analysis/internal/storage"
	"github.com/codebuildervaibhav/discussion-analysis/internal/transcription"
)

const pdfTimeout = 60 * time.Second

// App holds the long-lived components built from a Config.
type App struct {
	Config    *config.Config
	DB        *dao.SQLiteDAO
	Files     *storage.LocalStorage
	Snapshots *storage.SnapshotStore
	Archiver  storage.Archiver

	audio     *transcription.Processor
	topics    *analysis.TopicAnalyzer
	sentiment *analysis.SentimentAnalyzer
	reports   *report.Generator
	pdf       *report.PDFRenderer

	closeOnce sync.Once
}

// Build opens storage and constructs every analysis component.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	if a.DB, err = dao.Open(cfg.Storage.Database); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if a.Files, err = storage.NewLocalStorage(cfg.Storage.Root); err != nil {
		return nil, fmt.Errorf("open file storage: %w", err)
	}
	ttl := time.Duration(cfg.Cleanup.MaxAgeHours) * time.Hour
	if a.Snapshots, err = storage.OpenSnapshotStore(cfg.Storage.DebugDir, ttl); err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	client, err := NewLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	a.topics = analysis.NewTopicAnalyzer(client)
	if cfg.Analysis.Sentiment {
		a.sentiment = analysis.NewSentimentAnalyzer(client, cfg.LLM.MaxConcurrency)
	}

	if a.audio, err = NewAudioProcessor(cfg); err != nil {
		return nil, err
	}
	if a.reports, err = report.NewGenerator(); err != nil {
		return nil, err
	}
	for _, f := range cfg.Report.Formats {
		if f == "pdf" {
			a.pdf = report.NewPDFRenderer(pdfTimeout)
		}
	}

	if a.Archiver, err = NewArchiver(ctx, cfg); err != nil {
		logger.Warn("Archive backend not available, reports stay local", "backend", cfg.Archive.Backend, "err", err)
		a.Archiver = nil
	}

	ok = true
	return a, nil
}

// NewLLMClient returns the chat backend selected by llm.adapter.
func NewLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Adapter {
	case "ollama":
		c, err := ollama.New(ollama.Params{
			Model:                 cfg.LLM.Model,
			BaseURL:               cfg.LLM.BaseURL,
			APIKey:                cfg.LLM.APIKey,
			MaxConcurrentRequests: int64(cfg.LLM.MaxConcurrency),
		})
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return c, nil
	case "openai", "":
		return openai.New(openai.Params{
			Model:      cfg.LLM.Model,
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: cfg.LLM.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm adapter %q", cfg.LLM.Adapter)
	}
}

// NewAudioProcessor builds the ffmpeg, whisper and diarization chain.
func NewAudioProcessor(cfg *config.Config) (*transcription.Processor, error) {
	return transcription.NewProcessor(
		transcription.NewFFmpeg(cfg.Audio.FFmpeg, cfg.Storage.TempDir),
		transcription.NewFFprobe(cfg.Audio.FFprobe),
		transcription.NewWhisperTranscriber(transcription.WhisperParams{
			Command:  cfg.Whisper.Command,
			Backend:  cfg.Whisper.Backend,
			Model:    cfg.Whisper.Model,
			Language: cfg.Whisper.Language,
			Device:   cfg.Whisper.Device,
			WorkDir:  cfg.Storage.TempDir,
		}),
		&transcription.ScriptDiarizer{
			Command:     cfg.Diarization.Command,
			Script:      cfg.Diarization.Script,
			HFToken:     cfg.Diarization.HFToken,
			NumSpeakers: cfg.Diarization.NumSpeaker,
		},
	)
}

// NewArchiver returns the configured archive target, or nil for "none".
func NewArchiver(ctx context.Context, cfg *config.Config) (storage.Archiver, error) {
	switch cfg.Archive.Backend {
	case "gdrive":
		gd := cfg.Archive.GoogleDrive
		if _, err := os.Stat(gd.CredentialsFile); err != nil {
			return nil, fmt.Errorf("google drive credentials: %w", err)
		}
		return storage.NewDriveArchiver(ctx, gd.CredentialsFile, gd.TokenFile, gd.FolderName)
	case "s3":
		s := cfg.Archive.S3
		return storage.NewS3Archiver(ctx, storage.S3ArchiverParams{
			Region:    s.Region,
			Endpoint:  s.Endpoint,
			Bucket:    s.Bucket,
			AccessKey: s.AccessKey,
			SecretKey: s.SecretKey,
			Prefix:    s.Prefix,
		})
	default:
		return nil, nil
	}
}

// NewPipeline builds a pipeline bound to one DAO session.
func (a *App) NewPipeline(store dao.DataAccess) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Audio:     a.audio,
		Topics:    a.topics,
		Store:     store,
		Files:     a.Files,
		Reports:   a.reports,
		Snapshots: a.Snapshots,
	}
	// Typed nils must not reach the optional interfaces.
	if a.sentiment != nil {
		deps.Sentiment = a.sentiment
	}
	if a.pdf != nil {
		deps.PDF = a.pdf
	}
	if a.Archiver != nil {
		deps.Archiver = a.Archiver
	}

	return pipeline.New(deps, pipeline.Options{
		Audio: transcription.ProcessingConfig{
			SampleRate: a.Config.Audio.SampleRate,
			Channels:   a.Config.Audio.Channels,
			Format:     a.Config.Audio.Format,
			Normalize:  a.Config.Audio.Normalize,
		},
		ReportDir:    a.Config.Report.OutputDir,
		Formats:      a.Config.Report.Formats,
		KeepVersions: a.Config.Report.KeepVersions,
	})
}

// Close releases the database and snapshot store. It is safe to call twice.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.Snapshots != nil {
			if err := a.Snapshots.Close(); err != nil {
				logger.Warn("Failed to close snapshot store", "err", err)
			}
		}
		if a.DB != nil {
			if err := a.DB.Close(); err != nil {
				logger.Warn("Failed to close database", "err", err)
			}
		}
	})
}
