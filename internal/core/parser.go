package core

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoJobs     = errors.New("workflow has no jobs")
	ErrNoSteps    = errors.New("job has no steps")
	ErrEmptyRun   = errors.New("step has an empty run command")
	ErrNoTriggers = errors.New("workflow has no triggers")
)

// ParseWorkflow parses yaml content into a validated Workflow.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "parse workflow")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// LoadWorkflow reads and parses a workflow file.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read workflow")
	}
	return ParseWorkflow(data)
}

// Validate checks the structural invariants of a workflow: at least one
// trigger and one job, every step runnable, matrix axes non-empty, and needs
// referencing existing jobs without cycles.
func (w *Workflow) Validate() error {
	if w.On.Push == nil && w.On.PullRequest == nil {
		return ErrNoTriggers
	}
	if len(w.Jobs) == 0 {
		return ErrNoJobs
	}
	for name, job := range w.Jobs {
		if len(job.Steps) == 0 {
			return errors.Wrapf(ErrNoSteps, "job %q", name)
		}
		for i, step := range job.Steps {
			if step.Run == "" {
				return errors.Wrapf(ErrEmptyRun, "job %q step %d", name, i+1)
			}
		}
		for axis, values := range job.Strategy.Matrix {
			if len(values) == 0 {
				return errors.Errorf("job %q: matrix axis %q has no values", name, axis)
			}
		}
		if job.Strategy.MaxParallel < 0 {
			return errors.Errorf("job %q: max-parallel must not be negative", name)
		}
		for _, need := range job.Needs {
			if _, ok := w.Jobs[need]; !ok {
				return errors.Errorf("job %q needs unknown job %q", name, need)
			}
		}
	}
	// Ordering fails on dependency cycles.
	if _, err := OrderJobs(w); err != nil {
		return err
	}
	return nil
}
