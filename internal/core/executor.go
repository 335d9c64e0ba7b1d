package core

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// ErrStepTimeout marks a step killed by its timeout.
var ErrStepTimeout = errors.New("step timed out")

// Executor runs steps as shell commands rooted at a working directory.
type Executor struct {
	Workdir string
}

func NewExecutor(workdir string) *Executor {
	return &Executor{Workdir: workdir}
}

// RunStep executes a single step via "sh -c" and returns its combined
// stdout+stderr. The extra environment (matrix values) is appended after the
// step's own env so matrix variables win on conflict.
func (e *Executor) RunStep(ctx context.Context, step Step, extraEnv map[string]string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", step.Run)
	cmd.Dir = e.Workdir
	if step.Workdir != "" {
		cmd.Dir = filepath.Join(e.Workdir, step.Workdir)
	}

	env := os.Environ()
	for k, v := range step.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range extraEnv {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out.String(), errors.Wrapf(ErrStepTimeout, "after %s", timeout)
	}
	return out.String(), err
}
