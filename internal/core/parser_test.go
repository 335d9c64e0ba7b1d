package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixci/internal/core"
)

const validWorkflow = `
name: ci
on:
  push:
    branches: [master]
  pull_request:
    branches: [master]
jobs:
  build:
    strategy:
      max-parallel: 4
      matrix:
        python-version: [3.6, 3.7, 3.10]
    steps:
      - name: lint
        run: flake8 .
      - name: test
        run: python manage.py test
        working-directory: app
        timeout: 90s
`

func TestParseWorkflow(t *testing.T) {
	t.Parallel()

	w, err := core.ParseWorkflow([]byte(validWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "ci", w.Name)
	require.NotNil(t, w.On.Push)
	require.NotNil(t, w.On.PullRequest)
	assert.Equal(t, []string{"master"}, w.On.Push.Branches)

	job, ok := w.Jobs["build"]
	require.True(t, ok)
	assert.Equal(t, 4, job.Strategy.MaxParallel)
	assert.False(t, job.Strategy.FailFast)
	require.Len(t, job.Steps, 2)
	assert.Equal(t, "app", job.Steps[1].Workdir)
	assert.Equal(t, core.Duration(90*time.Second), job.Steps[1].Timeout)
}

// Matrix scalars must keep their literal spelling: 3.10 is a version, not
// the float 3.1.
func TestParseWorkflowMatrixLiterals(t *testing.T) {
	t.Parallel()

	w, err := core.ParseWorkflow([]byte(validWorkflow))
	require.NoError(t, err)

	values := w.Jobs["build"].Strategy.Matrix["python-version"]
	require.Len(t, values, 3)
	assert.Equal(t, core.MatrixValue("3.6"), values[0])
	assert.Equal(t, core.MatrixValue("3.10"), values[2])
}

func TestParseWorkflowErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no triggers",
			yaml: `
name: ci
jobs:
  build:
    steps:
      - run: "true"
`,
			want: "no triggers",
		},
		{
			name: "no jobs",
			yaml: `
name: ci
on:
  push: {}
`,
			want: "no jobs",
		},
		{
			name: "no steps",
			yaml: `
on:
  push: {}
jobs:
  build: {}
`,
			want: "no steps",
		},
		{
			name: "empty run",
			yaml: `
on:
  push: {}
jobs:
  build:
    steps:
      - name: lint
`,
			want: "empty run",
		},
		{
			name: "unknown need",
			yaml: `
on:
  push: {}
jobs:
  build:
    needs: [deploy]
    steps:
      - run: "true"
`,
			want: "unknown job",
		},
		{
			name: "needs cycle",
			yaml: `
on:
  push: {}
jobs:
  a:
    needs: [b]
    steps:
      - run: "true"
  b:
    needs: [a]
    steps:
      - run: "true"
`,
			want: "cycle",
		},
		{
			name: "empty matrix axis",
			yaml: `
on:
  push: {}
jobs:
  build:
    strategy:
      matrix:
        version: []
    steps:
      - run: "true"
`,
			want: "no values",
		},
		{
			name: "negative max-parallel",
			yaml: `
on:
  push: {}
jobs:
  build:
    strategy:
      max-parallel: -1
    steps:
      - run: "true"
`,
			want: "max-parallel",
		},
		{
			name: "bad timeout",
			yaml: `
on:
  push: {}
jobs:
  build:
    steps:
      - run: "true"
        timeout: soon
`,
			want: "invalid duration",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := core.ParseWorkflow([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadWorkflow(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ci.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validWorkflow), 0o644))

	w, err := core.LoadWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "ci", w.Name)

	_, err = core.LoadWorkflow(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
