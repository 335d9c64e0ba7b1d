package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixci/internal/core"
)

func TestParseEventKind(t *testing.T) {
	t.Parallel()

	kind, err := core.ParseEventKind("push")
	require.NoError(t, err)
	assert.Equal(t, core.EventPush, kind)

	kind, err = core.ParseEventKind("pull_request")
	require.NoError(t, err)
	assert.Equal(t, core.EventPullRequest, kind)

	_, err = core.ParseEventKind("tag")
	require.Error(t, err)
}

func TestWorkflowMatches(t *testing.T) {
	t.Parallel()

	w := &core.Workflow{
		On: core.Triggers{
			Push:        &core.BranchFilter{Branches: []string{"master", "release-*"}},
			PullRequest: &core.BranchFilter{Branches: []string{"master"}},
		},
	}

	cases := []struct {
		name string
		ev   core.Event
		want bool
	}{
		{"push to master", core.Event{Kind: core.EventPush, Branch: "master"}, true},
		{"push to release glob", core.Event{Kind: core.EventPush, Branch: "release-1.2"}, true},
		{"push to feature branch", core.Event{Kind: core.EventPush, Branch: "feature/x"}, false},
		{"pull request targeting master", core.Event{Kind: core.EventPullRequest, Branch: "master"}, true},
		{"pull request targeting develop", core.Event{Kind: core.EventPullRequest, Branch: "develop"}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, w.Matches(tc.ev))
		})
	}
}

func TestWorkflowMatchesEmptyFilter(t *testing.T) {
	t.Parallel()

	// A push section with no branch list fires on every branch; an absent
	// pull_request section never fires.
	w := &core.Workflow{On: core.Triggers{Push: &core.BranchFilter{}}}

	assert.True(t, w.Matches(core.Event{Kind: core.EventPush, Branch: "anything"}))
	assert.False(t, w.Matches(core.Event{Kind: core.EventPullRequest, Branch: "master"}))
}
