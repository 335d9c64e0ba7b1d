package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"matrixci/internal/storage"
)

// DefaultStepTimeout bounds steps that declare no timeout of their own.
const DefaultStepTimeout = 30 * time.Minute

// StepRunner executes a single step. *Executor is the shell implementation.
type StepRunner interface {
	RunStep(ctx context.Context, step Step, extraEnv map[string]string, timeout time.Duration) (string, error)
}

// Runner expands a workflow's jobs into matrix entries and executes them.
// Jobs run in needs order; entries of one job run concurrently up to the
// job's max-parallel bound, each entry executing its steps strictly in order
// and stopping at the first failing step.
type Runner struct {
	Steps       StepRunner
	Logs        *storage.LogStorage
	StepTimeout time.Duration
	logger      *zap.Logger
}

// NewRunner builds a Runner executing shell steps under workdir. Logs may be
// nil to skip log files; logger may be nil for silence.
func NewRunner(workdir string, logs *storage.LogStorage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Steps:       NewExecutor(workdir),
		Logs:        logs,
		StepTimeout: DefaultStepTimeout,
		logger:      logger,
	}
}

// RunWorkflow executes every job of the workflow for the given event and
// returns the aggregate result. Entry failures are reported through the
// result, not the error; the error covers structural problems only.
func (r *Runner) RunWorkflow(ctx context.Context, w *Workflow, ev Event) (*RunResult, error) {
	order, err := OrderJobs(w)
	if err != nil {
		return nil, err
	}

	res := &RunResult{
		ID:         uuid.NewString(),
		Workflow:   w.Name,
		Event:      ev,
		Conclusion: ConclusionSuccess,
		StartedAt:  time.Now().UTC(),
	}
	r.logger.Info("run started",
		zap.String("run", res.ID),
		zap.String("workflow", w.Name),
		zap.String("event", string(ev.Kind)),
		zap.String("branch", ev.Branch))

	notPassed := make(map[string]bool, len(order))

	for _, name := range order {
		job := w.Jobs[name]
		entries := ExpandJob(name, job)

		if need := blockedBy(job, notPassed); need != "" {
			r.logger.Info("job skipped", zap.String("job", name), zap.String("needs", need))
			for _, entry := range entries {
				res.Entries = append(res.Entries, skippedEntry(entry))
			}
			notPassed[name] = true
			continue
		}

		results := make([]EntryResult, len(entries))
		limit := job.Strategy.MaxParallel
		if limit <= 0 || limit > len(entries) {
			limit = len(entries)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		runCtx := ctx
		if job.Strategy.FailFast {
			runCtx = gctx
		}

		for i, entry := range entries {
			i, entry := i, entry
			g.Go(func() error {
				results[i] = r.runEntry(runCtx, res.ID, entry)
				if job.Strategy.FailFast && results[i].Conclusion != ConclusionSuccess {
					return errors.Errorf("entry %q did not succeed", entry.Name)
				}
				return nil
			})
		}
		// Entry outcomes live in results; the group error only drives
		// fail-fast cancellation.
		_ = g.Wait()

		for _, er := range results {
			if er.Conclusion != ConclusionSuccess {
				notPassed[name] = true
			}
			res.Entries = append(res.Entries, er)
		}
	}

	for _, er := range res.Entries {
		if er.Conclusion != ConclusionSuccess {
			res.Conclusion = ConclusionFailure
			break
		}
	}
	res.CompletedAt = time.Now().UTC()
	r.logger.Info("run finished",
		zap.String("run", res.ID),
		zap.String("conclusion", string(res.Conclusion)),
		zap.Duration("took", res.CompletedAt.Sub(res.StartedAt)))
	return res, nil
}

func blockedBy(job Job, notPassed map[string]bool) string {
	for _, need := range job.Needs {
		if notPassed[need] {
			return need
		}
	}
	return ""
}

func skippedEntry(entry Entry) EntryResult {
	er := EntryResult{
		Job:        entry.Job,
		Name:       entry.Name,
		Values:     entry.Values,
		Conclusion: ConclusionSkipped,
		Steps:      make([]StepResult, 0, len(entry.Steps)),
	}
	for _, step := range entry.Steps {
		er.Steps = append(er.Steps, StepResult{Name: step.Label(), Conclusion: ConclusionSkipped})
	}
	return er
}

// runEntry executes one matrix entry. The first failing step marks the entry
// failed and the remaining steps skipped.
func (r *Runner) runEntry(ctx context.Context, runID string, entry Entry) EntryResult {
	res := EntryResult{
		Job:        entry.Job,
		Name:       entry.Name,
		Values:     entry.Values,
		Conclusion: ConclusionSuccess,
	}
	env := entry.MatrixEnv()

	for i, step := range entry.Steps {
		sr := StepResult{Name: step.Label()}

		if res.Conclusion != ConclusionSuccess {
			sr.Conclusion = ConclusionSkipped
			res.Steps = append(res.Steps, sr)
			continue
		}
		if ctx.Err() != nil {
			sr.Conclusion = ConclusionCancelled
			res.Conclusion = ConclusionCancelled
			res.Steps = append(res.Steps, sr)
			continue
		}

		timeout := time.Duration(step.Timeout)
		if timeout <= 0 {
			timeout = r.StepTimeout
		}

		sr.StartedAt = time.Now().UTC()
		out, err := r.Steps.RunStep(ctx, step, env, timeout)
		sr.CompletedAt = time.Now().UTC()
		sr.Output = out

		if r.Logs != nil {
			logPath, logErr := r.Logs.SaveStepLog(runID, entry.Name, i+1, step.Label(), out)
			if logErr != nil {
				r.logger.Warn("save step log", zap.String("entry", entry.Name), zap.Error(logErr))
			} else {
				sr.LogPath = logPath
			}
		}

		switch {
		case err == nil:
			sr.Conclusion = ConclusionSuccess
		case errors.Is(ctx.Err(), context.Canceled):
			sr.Conclusion = ConclusionCancelled
			res.Conclusion = ConclusionCancelled
		default:
			sr.Error = err.Error()
			sr.Conclusion = ConclusionFailure
			res.Conclusion = ConclusionFailure
			r.logger.Info("step failed",
				zap.String("entry", entry.Name),
				zap.String("step", step.Label()),
				zap.Error(err))
		}
		res.Steps = append(res.Steps, sr)
	}
	return res
}
