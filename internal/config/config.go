package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Voice   VoiceConfig   `yaml:"voice"`
	Model   ModelConfig   `yaml:"model"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	Address        string `yaml:"address"`
	ReadTimeout    int    `yaml:"read_timeout"`     // seconds
	WriteTimeout   int    `yaml:"write_timeout"`    // seconds
	MaxUploadBytes int64  `yaml:"max_upload_bytes"` // limit on POSTed audio
}

// VoiceConfig contains WebSocket voice session configuration
type VoiceConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	MaxSessions    int    `yaml:"max_sessions"`
	SessionTimeout int    `yaml:"session_timeout"`  // seconds of idle before eviction
	MaxMessageSize int64  `yaml:"max_message_size"` // bytes per WebSocket frame
}

// ModelConfig contains transcription model configuration
type ModelConfig struct {
	Dir       string   `yaml:"dir"`        // empty enables mock mode
	SpecFile  string   `yaml:"spec_file"`  // descriptor inside dir
	ModelFile string   `yaml:"model_file"` // graph file inside dir
	Providers []string `yaml:"providers"`  // backends in fallback order
	WarmLoad  bool     `yaml:"warm_load"`  // load at startup instead of first request
}

// AudioConfig contains audio ingestion parameters
type AudioConfig struct {
	SampleRate        int     `yaml:"sample_rate"`         // expected rate of raw PCM input
	MaxBufferDuration float64 `yaml:"max_buffer_duration"` // seconds per voice session
	MaxAudioDuration  float64 `yaml:"max_audio_duration"`  // seconds per transcription request
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with sensible defaults for running
// without a config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Address:        "0.0.0.0",
			ReadTimeout:    30,
			WriteTimeout:   120,
			MaxUploadBytes: 64 << 20,
		},
		Voice: VoiceConfig{
			Enabled:        true,
			Path:           "/ws/voice",
			MaxSessions:    64,
			SessionTimeout: 300,
			MaxMessageSize: 16 << 20,
		},
		Model: ModelConfig{
			SpecFile:  "model.json",
			ModelFile: "encoder.onnx",
			Providers: []string{"cuda", "cpu"},
			WarmLoad:  true,
		},
		Audio: AudioConfig{
			SampleRate:        16000,
			MaxBufferDuration: 120,
			MaxAudioDuration:  600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Voice.Validate(); err != nil {
		return fmt.Errorf("voice config: %w", err)
	}

	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", s.ReadTimeout)
	}

	if s.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", s.WriteTimeout)
	}

	if s.MaxUploadBytes < 1024 {
		return fmt.Errorf("max_upload_bytes must be at least 1024, got %d", s.MaxUploadBytes)
	}

	return nil
}

// Validate validates voice session configuration
func (v *VoiceConfig) Validate() error {
	if !v.Enabled {
		return nil
	}

	if v.Path == "" {
		return fmt.Errorf("path cannot be empty when voice sessions are enabled")
	}

	if v.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", v.MaxSessions)
	}

	if v.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", v.SessionTimeout)
	}

	if v.MaxMessageSize < 1024 {
		return fmt.Errorf("max_message_size must be at least 1024 bytes, got %d", v.MaxMessageSize)
	}

	return nil
}

// Validate validates model configuration
func (m *ModelConfig) Validate() error {
	// An empty dir is valid and selects mock mode.
	if m.SpecFile == "" {
		return fmt.Errorf("spec_file cannot be empty")
	}

	if m.ModelFile == "" {
		return fmt.Errorf("model_file cannot be empty")
	}

	validProviders := map[string]bool{"cuda": true, "cpu": true}
	for _, p := range m.Providers {
		if !validProviders[p] {
			return fmt.Errorf("provider must be 'cuda' or 'cpu', got '%s'", p)
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.MaxBufferDuration <= 0 {
		return fmt.Errorf("max_buffer_duration must be positive, got %f", a.MaxBufferDuration)
	}

	if a.MaxAudioDuration <= 0 {
		return fmt.Errorf("max_audio_duration must be positive, got %f", a.MaxAudioDuration)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the server read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the server write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetSessionTimeout returns the voice session idle timeout as a time.Duration
func (v *VoiceConfig) GetSessionTimeout() time.Duration {
	return time.Duration(v.SessionTimeout) * time.Second
}

// GetMaxBufferDuration returns the per-session buffer cap as a time.Duration
func (a *AudioConfig) GetMaxBufferDuration() time.Duration {
	return time.Duration(a.MaxBufferDuration * float64(time.Second))
}

// GetMaxAudioDuration returns the per-request audio cap as a time.Duration
func (a *AudioConfig) GetMaxAudioDuration() time.Duration {
	return time.Duration(a.MaxAudioDuration * float64(time.Second))
}
