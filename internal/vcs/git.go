// Package vcs publishes the site repository with the git command line.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Step names.
const (
	StepStage  = "add"
	StepCommit = "commit"
	StepPush   = "push"
)

// Runner executes one command in dir and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// ExecRunner runs real processes.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	out := strings.TrimSpace(strings.Join([]string{
		strings.TrimSpace(stdout.String()),
		strings.TrimSpace(stderr.String()),
	}, "\n"))
	return out, err
}

// StepResult is the outcome of one git step. Output carries git's own text.
type StepResult struct {
	Step   string `json:"step"`
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Git drives a working copy.
type Git struct {
	dir    string
	binary string
	runner Runner
	logger *slog.Logger
}

// Option configures Git.
type Option func(*Git)

// WithBinary sets the git executable.
func WithBinary(path string) Option {
	return func(g *Git) {
		if path != "" {
			g.binary = path
		}
	}
}

// WithRunner replaces process execution.
func WithRunner(r Runner) Option {
	return func(g *Git) { g.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Git) {
		if l != nil {
			g.logger = l
		}
	}
}

// New returns a Git for the working copy at dir.
func New(dir string, opts ...Option) *Git {
	g := &Git{dir: dir, binary: "git", runner: ExecRunner{}, logger: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Stage runs `git add .`.
func (g *Git) Stage(ctx context.Context) StepResult {
	return g.run(ctx, StepStage, "add", ".")
}

// Commit runs `git commit -m msg`. A clean tree is not a failure.
func (g *Git) Commit(ctx context.Context, msg string) StepResult {
	res := g.run(ctx, StepCommit, "commit", "-m", msg)
	if !res.OK && strings.Contains(res.Output, "nothing to commit") {
		res.OK = true
		res.Note = "nothing to commit"
	}
	return res
}

// Push runs `git push`.
func (g *Git) Push(ctx context.Context) StepResult {
	return g.run(ctx, StepPush, "push")
}

// Publish stages, commits and pushes, stopping at the first failed step.
func (g *Git) Publish(ctx context.Context, msg string, onStep func(StepResult)) ([]StepResult, bool) {
	steps := []func() StepResult{
		func() StepResult { return g.Stage(ctx) },
		func() StepResult { return g.Commit(ctx, msg) },
		func() StepResult { return g.Push(ctx) },
	}
	var results []StepResult
	for _, step := range steps {
		res := step()
		results = append(results, res)
		if onStep != nil {
			onStep(res)
		}
		if !res.OK {
			return results, false
		}
	}
	return results, true
}

func (g *Git) run(ctx context.Context, step string, args ...string) StepResult {
	out, err := g.runner.Run(ctx, g.dir, g.binary, args...)
	res := StepResult{Step: step, OK: err == nil, Output: out}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			res.Output = fmt.Sprintf("%s not found in PATH; install git or set git.binary", g.binary)
		} else if res.Output == "" {
			res.Output = err.Error()
		}
	}
	g.logger.Info("vcs: step",
		slog.String("step", step),
		slog.Bool("ok", res.OK),
		slog.String("output", res.Output),
	)
	return res
}
