// Package config provides functionality for managing configuration options
// for the study backend and client using command-line flags, an optional
// JSON file, a .env file and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the development backend.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string

	// Config is the path to the Config file.
	Config string

	// JWTSecret signs and verifies session tokens.
	JWTSecret string

	// GeminiAPIKey enables the tutor. Empty disables the study routes.
	GeminiAPIKey string

	// GeminiModel is the model used for every tutor call.
	GeminiModel string

	// TLSCert and TLSKey switch the server to HTTPS when both are set.
	TLSCert string
	TLSKey  string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// DocumentRetention is how long uploaded documents are kept.
	DocumentRetention time.Duration
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	flag.StringVar(&options.GeminiModel, "model", "gemini-2.0-flash", "Gemini model used by the tutor")
	flag.StringVar(&options.TLSCert, "tls-cert", "", "path to server TLS certificate")
	flag.StringVar(&options.TLSKey, "tls-key", "", "path to server TLS key")
	flag.StringVar(&options.LogLevel, "log-level", "info", "log level")
	flag.DurationVar(&options.DocumentRetention, "retention", 7*24*time.Hour, "how long uploaded documents are kept")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. Precedence, lowest first: flags, config file,
// environment (a .env file in the working directory is loaded first).
func Parse() *Options {
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	applyEnv(options)

	return options
}

func applyEnv(o *Options) {
	setString(&o.Port, "SERVER_ADDRESS")
	setString(&o.DatabaseDSN, "DATABASE_DSN")
	setString(&o.JWTSecret, "JWT_SECRET")
	setString(&o.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&o.GeminiModel, "GEMINI_MODEL")
	setString(&o.TLSCert, "TLS_CERT")
	setString(&o.TLSKey, "TLS_KEY")
	setString(&o.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("DOCUMENT_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			o.DocumentRetention = d
		} else {
			log.Printf("ignoring DOCUMENT_RETENTION=%q: %v", v, err)
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
