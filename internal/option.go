package internal

import (
	"io"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// logOutput receives the JSON log stream; stdout unless the process
	// speaks a protocol on stdout.
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the application log.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
