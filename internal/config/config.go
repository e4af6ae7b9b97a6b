package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "voiceloop"

// Inference backends.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// Speech failure policies.
const (
	OnFailureContinue = "continue"
	OnFailureAbort    = "abort"
)

// Environment variables that override file values.
const (
	EnvServer  = "VOICELOOP_SERVER"
	EnvModel   = "VOICELOOP_MODEL"
	EnvBackend = "VOICELOOP_BACKEND"
	EnvVoice   = "VOICELOOP_VOICE"
	EnvAPIKey  = "OPENAI_API_KEY"
)

type Config struct {
	Inference InferenceConfig `yaml:"inference"`
	Audio     AudioConfig     `yaml:"audio"`
	Whisper   WhisperConfig   `yaml:"whisper"`
	Speech    SpeechConfig    `yaml:"speech"`

	// WorkDir holds the per-turn recordings. It is created on start.
	WorkDir   string `yaml:"work_dir"`
	ModelsDir string `yaml:"models_dir"`

	ExitKeyword     string `yaml:"exit_keyword"`
	OnSpeechFailure string `yaml:"on_speech_failure"` // "continue" or "abort"
	CopyReplies     bool   `yaml:"copy_replies"`
	MetricsAddress  string `yaml:"metrics_address"`
	LogLevel        string `yaml:"log_level"`
}

type InferenceConfig struct {
	Backend      string        `yaml:"backend"` // "ollama" or "openai"
	Server       string        `yaml:"server"`  // host:port for ollama, base URL for openai
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key,omitempty"`
	SystemPrompt string        `yaml:"system_prompt,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
}

type AudioConfig struct {
	DeviceID     string `yaml:"device_id"`
	SampleFormat string `yaml:"sample_format"` // "", "int16" or "float32"
	Channels     int    `yaml:"channels"`
	SampleRate   int    `yaml:"sample_rate"`
}

type WhisperConfig struct {
	Dir      string   `yaml:"dir"` // whisper.cpp checkout with a build/ tree
	Model    string   `yaml:"model"`
	Threads  int      `yaml:"threads"`
	Binaries []string `yaml:"binaries,omitempty"`
}

type SpeechConfig struct {
	Voice           string   `yaml:"voice"`
	Binaries        []string `yaml:"binaries"`
	LengthScale     float64  `yaml:"length_scale"`
	NoiseScale      float64  `yaml:"noise_scale"`
	NoiseW          float64  `yaml:"noise_w"`
	SentenceSilence float64  `yaml:"sentence_silence"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Inference: InferenceConfig{
			Backend: BackendOllama,
			Server:  "localhost:11434",
			Model:   "llama3.2:latest",
			Timeout: 2 * time.Minute,
		},
		Whisper: WhisperConfig{
			Dir:     filepath.Join(DataPath(), "whisper.cpp"),
			Model:   "base.en",
			Threads: 8,
		},
		Speech: SpeechConfig{
			Voice:           "en_GB-cori-high",
			Binaries:        []string{"piper-tts", "piper"},
			LengthScale:     1.2,
			NoiseScale:      0.5,
			NoiseW:          0.6,
			SentenceSilence: 0.25,
		},
		WorkDir:         filepath.Join(DataPath(), "records"),
		ModelsDir:       ModelsPath(),
		ExitKeyword:     "exit",
		OnSpeechFailure: OnFailureContinue,
		LogLevel:        "info",
	}
}

// Load reads the config at path on top of the defaults, then applies
// environment overrides. A missing file is not an error. An empty path
// means DefaultPath().
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// .env in the working directory feeds the same variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Inference.Server, EnvServer)
	setFromEnv(&c.Inference.Model, EnvModel)
	setFromEnv(&c.Inference.Backend, EnvBackend)
	setFromEnv(&c.Speech.Voice, EnvVoice)
	setFromEnv(&c.Inference.APIKey, EnvAPIKey)
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Save writes the config to path as YAML
func (c *Config) Save(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Inference.Validate(); err != nil {
		return fmt.Errorf("inference config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Whisper.Validate(); err != nil {
		return fmt.Errorf("whisper config: %w", err)
	}
	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech config: %w", err)
	}

	if c.WorkDir == "" {
		return fmt.Errorf("work_dir cannot be empty")
	}
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir cannot be empty")
	}
	if strings.TrimSpace(c.ExitKeyword) == "" {
		return fmt.Errorf("exit_keyword cannot be empty")
	}
	switch c.OnSpeechFailure {
	case OnFailureContinue, OnFailureAbort:
	default:
		return fmt.Errorf("on_speech_failure must be %q or %q, got %q", OnFailureContinue, OnFailureAbort, c.OnSpeechFailure)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}

	return nil
}

func (i *InferenceConfig) Validate() error {
	switch i.Backend {
	case BackendOllama:
		if i.Server == "" {
			return fmt.Errorf("server cannot be empty for the ollama backend")
		}
	case BackendOpenAI:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendOllama, BackendOpenAI, i.Backend)
	}

	if i.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if i.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", i.Timeout)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	switch strings.ToLower(a.SampleFormat) {
	case "", "int16", "i16", "float32", "f32":
	default:
		return fmt.Errorf("sample_format must be int16 or float32, got %q", a.SampleFormat)
	}
	if a.Channels < 0 {
		return fmt.Errorf("channels cannot be negative, got %d", a.Channels)
	}
	if a.SampleRate < 0 {
		return fmt.Errorf("sample_rate cannot be negative, got %d", a.SampleRate)
	}
	return nil
}

func (w *WhisperConfig) Validate() error {
	if w.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if w.Threads < 0 {
		return fmt.Errorf("threads cannot be negative, got %d", w.Threads)
	}
	return nil
}

func (s *SpeechConfig) Validate() error {
	if s.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}
	if len(s.Binaries) == 0 {
		return fmt.Errorf("binaries must name at least one piper executable")
	}
	for name, v := range map[string]float64{
		"length_scale":     s.LengthScale,
		"noise_scale":      s.NoiseScale,
		"noise_w":          s.NoiseW,
		"sentence_silence": s.SentenceSilence,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative, got %g", name, v)
		}
	}
	return nil
}

// DefaultPath returns the platform-specific config file path
func DefaultPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, appName, "config.yaml")
}

// DataPath returns the platform-specific data directory
func DataPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, appName)
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	return filepath.Join(DataPath(), "models")
}
