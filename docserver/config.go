package docserver

import (
	"time"

	"github.com/vitalvas/pagespec/config"
)

// Config configures the documentation server.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// BasePath is the prefix of the page index and every page.
	BasePath string `env:"DOCS_BASE_PATH" envDefault:"/docs"`

	// UI is one of "swagger", "rapidoc" or "redoc".
	UI string `env:"DOCS_UI" envDefault:"swagger"`

	// CompressionMinLength is the smallest body, in bytes, that is gzipped.
	CompressionMinLength int `env:"DOCS_COMPRESSION_MIN_LENGTH" envDefault:"1024"`
}

// DefaultConfig returns the configuration used when no environment
// variables are set.
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		ReadTimeout:          10 * time.Second,
		WriteTimeout:         30 * time.Second,
		IdleTimeout:          120 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		BasePath:             "/docs",
		UI:                   "swagger",
		CompressionMinLength: 1024,
	}
}

// LoadConfig reads Config from the environment and an optional .env file.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
