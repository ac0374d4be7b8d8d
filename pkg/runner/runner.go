package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Result captures the outcome of one external process invocation. Output holds
// combined stdout and stderr; the rendering scripts interleave progress text
// and machine-readable lines on both streams.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Success reports whether the process exited with code zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Lines splits the captured output into trimmed, non-empty lines.
func (r Result) Lines() []string {
	raw := strings.Split(r.Output, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Runner executes external rendering and conversion processes, capturing
// combined output. A zero Timeout means the process may run unbounded.
type Runner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs a Runner.
func New(timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{timeout: timeout, logger: logger}
}

// Run invokes the named program with args and waits for it to exit. A non-zero
// exit code is not an error: it is reported through Result.ExitCode so callers
// can apply their own failure semantics. The returned error covers spawn
// failures and context expiry only.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if name == "" {
		return Result{ExitCode: -1}, fmt.Errorf("runner: program name required")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	result := Result{
		Output:   string(output),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		r.logger.Warn("external process timed out",
			zap.String("program", name),
			zap.Duration("after", result.Duration),
		)
		return result, fmt.Errorf("runner: %s timed out: %w", name, ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Warn("external process exited non-zero",
				zap.String("program", name),
				zap.Int("exit_code", result.ExitCode),
			)
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("runner: start %s: %w", name, err)
	}

	result.ExitCode = 0
	r.logger.Debug("external process finished",
		zap.String("program", name),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
