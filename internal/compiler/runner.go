package compiler

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner abstracts process execution so the pipeline can be tested without a TeX installation
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes name in dir with stdin closed, capturing both output streams in full
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
