package core

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Workflow is a parsed CI workflow definition.
type Workflow struct {
	Name string         `yaml:"name"`
	On   Triggers       `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// Triggers lists the events that fire a workflow. A nil section means the
// workflow never fires for that event kind.
type Triggers struct {
	Push        *BranchFilter `yaml:"push"`
	PullRequest *BranchFilter `yaml:"pull_request"`
}

// BranchFilter restricts a trigger to branches matching one of the patterns.
// Patterns use path.Match syntax. An empty list matches every branch.
type BranchFilter struct {
	Branches []string `yaml:"branches"`
}

// Job is one unit of the workflow. Its matrix (if any) expands into
// independent entries that all run the same step sequence.
type Job struct {
	Needs    []string `yaml:"needs"`
	Strategy Strategy `yaml:"strategy"`
	Steps    []Step   `yaml:"steps"`
}

// Strategy controls matrix expansion and entry scheduling.
type Strategy struct {
	Matrix      map[string][]MatrixValue `yaml:"matrix"`
	MaxParallel int                      `yaml:"max-parallel"`
	FailFast    bool                     `yaml:"fail-fast"`
}

// Step is a single shell invocation inside a job.
type Step struct {
	Name    string            `yaml:"name"`
	Run     string            `yaml:"run"`
	Env     map[string]string `yaml:"env"`
	Workdir string            `yaml:"working-directory"`
	Timeout Duration          `yaml:"timeout"`
}

// Label returns the step name, falling back to the command itself.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Run
}

// MatrixValue keeps a matrix scalar exactly as written in the yaml source,
// so a version like 3.10 is not decoded as the float 3.1.
type MatrixValue string

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *MatrixValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("matrix value on line %d must be a scalar", node.Line)
	}
	*v = MatrixValue(node.Value)
	return nil
}

// Duration is a time.Duration that unmarshals from yaml strings like "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q on line %d", raw, node.Line)
	}
	*d = Duration(dur)
	return nil
}
