package core

import (
	"path"

	"github.com/pkg/errors"
)

// EventKind is the kind of repository event that can fire a workflow.
type EventKind string

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
)

// ParseEventKind validates a user-supplied event kind.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventPush, EventPullRequest:
		return EventKind(s), nil
	}
	return "", errors.Errorf("unknown event kind %q", s)
}

// Event is a trigger candidate. For pull requests, Branch is the branch the
// pull request targets.
type Event struct {
	Kind     EventKind `json:"kind"`
	Branch   string    `json:"branch"`
	Revision string    `json:"revision,omitempty"`
}

// Matches reports whether the event fires this workflow.
func (w *Workflow) Matches(ev Event) bool {
	switch ev.Kind {
	case EventPush:
		return w.On.Push.matches(ev.Branch)
	case EventPullRequest:
		return w.On.PullRequest.matches(ev.Branch)
	}
	return false
}

func (f *BranchFilter) matches(branch string) bool {
	if f == nil {
		return false
	}
	if len(f.Branches) == 0 {
		return true
	}
	for _, pattern := range f.Branches {
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}
