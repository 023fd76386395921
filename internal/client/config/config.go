// Package config loads the study client's settings from .env and the
// environment. The CLI binds its flags on top of these defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the configuration of the study client.
type Options struct {
	// BaseURL is the backend API root, including the /api prefix.
	BaseURL string
	// StatePath is the credential file.
	StatePath string
	// CAFile is an optional PEM bundle for a backend behind a private CA.
	CAFile string
	// Timeout bounds each request; zero means none.
	Timeout time.Duration
	// TTSCommand and STTCommand configure the speech engines. Empty disables
	// the corresponding direction.
	TTSCommand string
	STTCommand string
	// LogFile receives the client's logs; LogLevel filters them.
	LogFile  string
	LogLevel string
}

// Load returns Options populated from .env and the environment.
func Load() *Options {
	_ = godotenv.Load()

	dir := defaultDir()
	o := &Options{
		BaseURL:   "http://localhost:8080/api",
		StatePath: filepath.Join(dir, "state.json"),
		LogFile:   filepath.Join(dir, "client.log"),
		LogLevel:  "info",
	}
	setString(&o.BaseURL, "FEYNMIND_URL")
	setString(&o.StatePath, "FEYNMIND_STATE")
	setString(&o.CAFile, "FEYNMIND_CA")
	setString(&o.TTSCommand, "FEYNMIND_TTS")
	setString(&o.STTCommand, "FEYNMIND_STT")
	setString(&o.LogFile, "FEYNMIND_LOG_FILE")
	setString(&o.LogLevel, "FEYNMIND_LOG_LEVEL")
	if v := os.Getenv("FEYNMIND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			o.Timeout = d
		}
	}
	return o
}

func defaultDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".feynmind")
	}
	return ".feynmind"
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
