package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// maxTestOutput caps the test output kept in the summary.
const maxTestOutput = 4000

// TestResult is the outcome of the test-suite step.
type TestResult struct {
	Command    string `json:"command"`
	Passed     bool   `json:"passed"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"`
}

// TestRunner runs the project test suite.
type TestRunner interface {
	RunTests(ctx context.Context) (*TestResult, error)
}

// CommandTestRunner runs a shell-free command line such as "go test ./...".
type CommandTestRunner struct {
	command string
	dir     string
}

// NewCommandTestRunner creates a runner executing command in dir.
func NewCommandTestRunner(command, dir string) *CommandTestRunner {
	return &CommandTestRunner{command: command, dir: dir}
}

// RunTests executes the command. A non-zero exit is a failed result, not an
// error; an error means the command could not start.
func (r *CommandTestRunner) RunTests(ctx context.Context) (*TestResult, error) {
	args := strings.Fields(r.command)
	if len(args) == 0 {
		return nil, errors.New("empty test command")
	}

	start := time.Now()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := &TestResult{Command: r.command, DurationMs: time.Since(start).Milliseconds()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Passed = true
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, err
	}

	output := out.String()
	if len(output) > maxTestOutput {
		output = output[len(output)-maxTestOutput:]
	}
	res.Output = output
	return res, nil
}
