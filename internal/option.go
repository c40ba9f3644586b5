package internal

import (
	"io"
	"time"

	"github.com/starford/notepress/internal/vcs"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	runner vcs.Runner
	now    func() time.Time
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStdio replaces the process streams. stdout carries prompts and command
// output, stderr carries logs.
func WithStdio(in io.Reader, out, errOut io.Writer) Option {
	return func(a *application) {
		a.stdin, a.stdout, a.stderr = in, out, errOut
	}
}

// WithGitRunner replaces the process runner used for git.
func WithGitRunner(r vcs.Runner) Option {
	return func(a *application) {
		a.runner = r
	}
}

// WithClock sets the time source for header timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *application) {
		a.now = now
	}
}
