package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port" validate:"min=1,max=65535"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Workers struct {
		Count int `yaml:"count" validate:"min=1"`
	} `yaml:"workers"`

	Audio struct {
		SampleRate int    `yaml:"sample_rate" validate:"min=8000"`
		Channels   int    `yaml:"channels" validate:"min=1,max=2"`
		Format     string `yaml:"format" validate:"required"`
		Normalize  bool   `yaml:"normalize"`
		FFmpeg     string `yaml:"ffmpeg"`
		FFprobe    string `yaml:"ffprobe"`
	} `yaml:"audio"`

	Whisper struct {
		Command  string `yaml:"command" validate:"required"`
		Backend  string `yaml:"backend" validate:"oneof=whisper stable-ts"`
		Model    string `yaml:"model" validate:"required"`
		Language string `yaml:"language"`
		Device   string `yaml:"device"`
	} `yaml:"whisper"`

	Diarization struct {
		Command    string `yaml:"command" validate:"required"`
		Script     string `yaml:"script" validate:"required"`
		HFToken    string `yaml:"hf_token"`
		NumSpeaker int    `yaml:"num_speakers"`
	} `yaml:"diarization"`

	LLM struct {
		Adapter        string  `yaml:"adapter" validate:"oneof=openai ollama"`
		Model          string  `yaml:"model" validate:"required"`
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		Temperature    float64 `yaml:"temperature" validate:"min=0,max=2"`
		MaxConcurrency int     `yaml:"max_concurrency" validate:"min=1"`
		TimeoutSeconds int     `yaml:"timeout_seconds" validate:"min=0"`
		MaxRetries     int     `yaml:"max_retries" validate:"min=0"`
	} `yaml:"llm"`

	Analysis struct {
		Sentiment bool `yaml:"sentiment"`
	} `yaml:"analysis"`

	Storage struct {
		Root     string `yaml:"root" validate:"required"`
		TempDir  string `yaml:"temp_dir" validate:"required"`
		Database string `yaml:"database" validate:"required"`
		DebugDir string `yaml:"debug_dir"`
	} `yaml:"storage"`

	Report struct {
		OutputDir    string   `yaml:"output_dir" validate:"required"`
		Formats      []string `yaml:"formats" validate:"min=1,dive,oneof=html pdf txt"`
		KeepVersions int      `yaml:"keep_versions" validate:"min=1"`
	} `yaml:"report"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes" validate:"min=1"`
		MaxAgeHours     int `yaml:"max_age_hours" validate:"min=1"`
	} `yaml:"cleanup"`

	Archive struct {
		Backend     string `yaml:"backend" validate:"oneof=none gdrive s3"`
		GoogleDrive struct {
			CredentialsFile string `yaml:"credentials_file"`
			TokenFile       string `yaml:"token_file"`
			FolderName      string `yaml:"folder_name"`
		} `yaml:"google_drive"`
		S3 struct {
			Region    string `yaml:"region"`
			Endpoint  string `yaml:"endpoint"`
			Bucket    string `yaml:"bucket"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Prefix    string `yaml:"prefix"`
		} `yaml:"s3"`
	} `yaml:"archive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb" validate:"min=1"`
	} `yaml:"limits"`

	Debug bool `yaml:"debug"`
}

// Defaults returns a configuration that runs locally without a config file.
func Defaults() *Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Workers.Count = 2

	c.Audio.SampleRate = 16000
	c.Audio.Channels = 1
	c.Audio.Format = "wav"
	c.Audio.Normalize = true
	c.Audio.FFmpeg = "ffmpeg"
	c.Audio.FFprobe = "ffprobe"

	c.Whisper.Command = "stable-ts"
	c.Whisper.Backend = "stable-ts"
	c.Whisper.Model = "base"

	c.Diarization.Command = "python3"
	c.Diarization.Script = "scripts/diarize.py"

	c.LLM.Adapter = "openai"
	c.LLM.Model = "gpt-4o-mini"
	c.LLM.Temperature = 0.1
	c.LLM.MaxConcurrency = 4
	c.LLM.TimeoutSeconds = 120
	c.LLM.MaxRetries = 2

	c.Analysis.Sentiment = true

	c.Storage.Root = "data/storage"
	c.Storage.TempDir = "temp"
	c.Storage.Database = "data/discussions.db"
	c.Storage.DebugDir = "data/debug"

	c.Report.OutputDir = "data/reports"
	c.Report.Formats = []string{"html"}
	c.Report.KeepVersions = 5

	c.Cleanup.IntervalMinutes = 30
	c.Cleanup.MaxAgeHours = 24

	c.Archive.Backend = "none"
	c.Archive.GoogleDrive.FolderName = "Discussion Reports"

	c.Limits.MaxFileSizeMB = 500
	return &c
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} placeholders with environment values. Unset
// variables are an error rather than an empty string.
func ExpandEnv(raw []byte) ([]byte, error) {
	var missing []string
	out := envPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := string(envPattern.FindSubmatch(m)[1])
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return []byte(val)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("environment variables not set: %v", missing)
	}
	return out, nil
}

// Load reads the YAML file at path on top of Defaults, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded, err := ExpandEnv(raw)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := GetEnvString("LLM_API_KEY", GetEnv("OPENAI_API_KEY")); key != "" {
		cfg.LLM.APIKey = key
	}
	cfg.LLM.Adapter = GetEnvString("AI_ADAPTER", cfg.LLM.Adapter)
	cfg.LLM.BaseURL = GetEnvString("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = GetEnvString("LLM_MODEL", cfg.LLM.Model)
	cfg.Diarization.HFToken = GetEnvString("HF_TOKEN", cfg.Diarization.HFToken)
	cfg.Server.Port = GetEnvInt("PORT", cfg.Server.Port)
	cfg.Debug = GetEnvBool("DEBUG", cfg.Debug)

	cfg.Archive.S3.AccessKey = GetEnvString("AWS_ACCESS_KEY", cfg.Archive.S3.AccessKey)
	cfg.Archive.S3.SecretKey = GetEnvString("AWS_SECRET_KEY", cfg.Archive.S3.SecretKey)
	cfg.Archive.S3.Region = GetEnvString("AWS_REGION", cfg.Archive.S3.Region)
	cfg.Archive.S3.Endpoint = GetEnvString("AWS_ENDPOINT", cfg.Archive.S3.Endpoint)
	cfg.Archive.S3.Bucket = GetEnvString("AWS_BUCKET", cfg.Archive.S3.Bucket)
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.LLM.Adapter == "openai" && c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("invalid config: llm.api_key (or OPENAI_API_KEY) is required for the openai adapter")
	}
	if c.Archive.Backend == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("invalid config: archive.s3.bucket is required for the s3 backend")
	}
	return nil
}

// LLMTimeout returns the per-request timeout, zero meaning none.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}
