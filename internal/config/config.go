// Package config loads tool configuration from an optional YAML file with
// environment overrides on top. Secrets (API key, database URL) come from
// the environment so config files stay committable.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API      API      `yaml:"api"`
	Chunking Chunking `yaml:"chunking"`
	Retry    Retry    `yaml:"retry"`
	Workers  Workers  `yaml:"workers"`
	Paths    Paths    `yaml:"paths"`
	Status   Status   `yaml:"status"`
	Archive  Archive  `yaml:"archive"`
}

type API struct {
	Key                   string `yaml:"key"`
	Endpoint              string `yaml:"endpoint"`
	Model                 string `yaml:"model"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

func (a API) Timeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

type Chunking struct {
	// SizeCeilingBytes is the hard per-upload limit of the API.
	SizeCeilingBytes   int64   `yaml:"size_ceiling_bytes"`
	TargetChunkSeconds float64 `yaml:"target_chunk_seconds"`
	FFmpegPath         string  `yaml:"ffmpeg_path"`
	FFprobePath        string  `yaml:"ffprobe_path"`
}

type Retry struct {
	MaxAttempts  int     `yaml:"max_attempts"`
	BaseDelayMs  int     `yaml:"base_delay_ms"`
	MaxDelayMs   int     `yaml:"max_delay_ms"`
	QuotaDelayMs int     `yaml:"quota_delay_ms"`
	Jitter       float64 `yaml:"jitter"`
}

func (r Retry) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

func (r Retry) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

func (r Retry) QuotaDelay() time.Duration {
	return time.Duration(r.QuotaDelayMs) * time.Millisecond
}

type Workers struct {
	Files  int `yaml:"files"`
	Chunks int `yaml:"chunks"`
}

type Paths struct {
	InputDir   string `yaml:"input_dir"`
	OutputDir  string `yaml:"output_dir"`
	FailureLog string `yaml:"failure_log"`
	LogsDir    string `yaml:"logs_dir"`
}

type Status struct {
	// Addr enables the status HTTP server when non-empty.
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

type Archive struct {
	// DatabaseURL enables the Postgres run archive when non-empty.
	DatabaseURL string `yaml:"database_url"`
}

// Default returns the configuration used when no file and no overrides are
// present. The chunking and retry numbers match the transcription API's
// published upload limit and its observed throttling behavior.
func Default() *Config {
	return &Config{
		API: API{
			Endpoint:              "https://api.openai.com/v1/audio/transcriptions",
			Model:                 "whisper-1",
			RequestTimeoutSeconds: 120,
		},
		Chunking: Chunking{
			SizeCeilingBytes:   25 * 1024 * 1024,
			TargetChunkSeconds: 600,
			FFmpegPath:         "ffmpeg",
			FFprobePath:        "ffprobe",
		},
		Retry: Retry{
			MaxAttempts:  4,
			BaseDelayMs:  1000,
			MaxDelayMs:   30000,
			QuotaDelayMs: 20000,
			Jitter:       0.2,
		},
		Workers: Workers{
			Files:  2,
			Chunks: 3,
		},
		Paths: Paths{
			InputDir:   "Videos",
			OutputDir:  "Transcriptions",
			FailureLog: "failed_files.jsonl",
			LogsDir:    "logs",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is non-empty, then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.API.Key = v
	}
	if v := os.Getenv("TRANSCRIBE_ENDPOINT"); v != "" {
		c.API.Endpoint = v
	}
	if v := os.Getenv("STATUS_ADDR"); v != "" {
		c.Status.Addr = v
	}
	if v := os.Getenv("STATUS_TOKEN"); v != "" {
		c.Status.AuthToken = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Archive.DatabaseURL = v
	}
}

func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if err := c.Workers.Validate(); err != nil {
		return err
	}
	return c.Paths.Validate()
}

func (a API) Validate() error {
	if a.Key == "" {
		return fmt.Errorf("config: api.key is required (set OPENAI_API_KEY)")
	}
	if a.Endpoint == "" {
		return fmt.Errorf("config: api.endpoint must not be empty")
	}
	if a.Model == "" {
		return fmt.Errorf("config: api.model must not be empty")
	}
	if a.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("config: api.request_timeout_seconds must be positive, got %d", a.RequestTimeoutSeconds)
	}
	return nil
}

func (ch Chunking) Validate() error {
	if ch.SizeCeilingBytes <= 0 {
		return fmt.Errorf("config: chunking.size_ceiling_bytes must be positive, got %d", ch.SizeCeilingBytes)
	}
	if ch.TargetChunkSeconds <= 0 {
		return fmt.Errorf("config: chunking.target_chunk_seconds must be positive, got %v", ch.TargetChunkSeconds)
	}
	if ch.FFmpegPath == "" || ch.FFprobePath == "" {
		return fmt.Errorf("config: chunking.ffmpeg_path and chunking.ffprobe_path must not be empty")
	}
	return nil
}

func (r Retry) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.max_attempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.BaseDelayMs < 0 || r.MaxDelayMs < 0 || r.QuotaDelayMs < 0 {
		return fmt.Errorf("config: retry delays must not be negative")
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		return fmt.Errorf("config: retry.jitter must be within [0, 1], got %v", r.Jitter)
	}
	return nil
}

func (w Workers) Validate() error {
	if w.Files < 1 {
		return fmt.Errorf("config: workers.files must be at least 1, got %d", w.Files)
	}
	if w.Chunks < 1 {
		return fmt.Errorf("config: workers.chunks must be at least 1, got %d", w.Chunks)
	}
	return nil
}

func (p Paths) Validate() error {
	if p.InputDir == "" {
		return fmt.Errorf("config: paths.input_dir must not be empty")
	}
	if p.OutputDir == "" {
		return fmt.Errorf("config: paths.output_dir must not be empty")
	}
	if p.FailureLog == "" {
		return fmt.Errorf("config: paths.failure_log must not be empty")
	}
	if p.LogsDir == "" {
		return fmt.Errorf("config: paths.logs_dir must not be empty")
	}
	return nil
}
