package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codebuildervaibhav/discussion-analysis/internal/config"
	"github.com/codebuildervaibhav/discussion-analysis/internal/llm/ollama"
	"github.com/codebuildervaibhav/discussion-analysis/internal/llm/openai"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.LLM.APIKey = "test-key"
	cfg.Storage.Root = filepath.Join(dir, "storage")
	cfg.Storage.TempDir = filepath.Join(dir, "temp")
	cfg.Storage.Database = filepath.Join(dir, "test.db")
	cfg.Storage.DebugDir = ""
	cfg.Report.OutputDir = filepath.Join(dir, "reports")
	return cfg
}

func TestNewLLMClient(t *testing.T) {
	cfg := testConfig(t)

	c, err := NewLLMClient(cfg)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := c.(*openai.Client); !ok {
		t.Errorf("openai adapter built %T", c)
	}

	cfg.LLM.Adapter = "ollama"
	if c, err = NewLLMClient(cfg); err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, ok := c.(*ollama.Client); !ok {
		t.Errorf("ollama adapter built %T", c)
	}

	cfg.LLM.Adapter = "bogus"
	if _, err := NewLLMClient(cfg); err == nil {
		t.Error("expected error for unknown adapter")
	}
}

func TestBuildAndNewPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.Sentiment = false

	a, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close()

	if a.Archiver != nil {
		t.Errorf("Archiver = %T, want nil for backend none", a.Archiver)
	}
	if a.sentiment != nil {
		t.Error("sentiment analyzer built with sentiment disabled")
	}

	session := a.DB.NewSession()
	defer session.Close()
	if _, err := a.NewPipeline(session); err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	a.Close()
	a.Close()
}

func TestNewArchiverS3(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.Backend = "s3"
	cfg.Archive.S3.Bucket = "reports"
	cfg.Archive.S3.Region = "us-east-1"
	cfg.Archive.S3.AccessKey = "key"
	cfg.Archive.S3.SecretKey = "secret"

	a, err := NewArchiver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewArchiver: %v", err)
	}
	if a == nil {
		t.Fatal("expected an s3 archiver")
	}
}
