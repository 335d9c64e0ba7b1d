package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixci/internal/core"
)

func job(needs ...string) core.Job {
	return core.Job{Needs: needs, Steps: []core.Step{{Run: "true"}}}
}

func TestOrderJobsRespectsNeeds(t *testing.T) {
	t.Parallel()

	w := &core.Workflow{Jobs: map[string]core.Job{
		"deploy": job("test"),
		"test":   job("build"),
		"build":  job(),
	}}
	order, err := core.OrderJobs(w)
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "test", "deploy"}, order)
}

func TestOrderJobsStable(t *testing.T) {
	t.Parallel()

	w := &core.Workflow{Jobs: map[string]core.Job{
		"c": job(),
		"a": job(),
		"b": job(),
	}}
	for i := 0; i < 10; i++ {
		order, err := core.OrderJobs(w)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, order)
	}
}

func TestOrderJobsCycle(t *testing.T) {
	t.Parallel()

	w := &core.Workflow{Jobs: map[string]core.Job{
		"a": job("b"),
		"b": job("a"),
	}}
	_, err := core.OrderJobs(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
