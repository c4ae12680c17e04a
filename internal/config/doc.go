// Package config provides configuration loading and validation for the
// voice transcription service. It handles YAML-based configuration with
// per-section struct validation and built-in defaults that run the service
// in mock mode without a model on disk.
package config
