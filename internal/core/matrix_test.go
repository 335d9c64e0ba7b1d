package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixci/internal/core"
)

func TestExpandJobNoMatrix(t *testing.T) {
	t.Parallel()

	job := core.Job{Steps: []core.Step{{Run: "true"}}}
	entries := core.ExpandJob("build", job)

	require.Len(t, entries, 1)
	assert.Equal(t, "build", entries[0].Name)
	assert.Empty(t, entries[0].Values)
}

func TestExpandJobCartesianProduct(t *testing.T) {
	t.Parallel()

	job := core.Job{
		Strategy: core.Strategy{
			Matrix: map[string][]core.MatrixValue{
				"os":      {"linux", "darwin"},
				"version": {"3.6", "3.7", "3.8"},
			},
		},
		Steps: []core.Step{{Run: "true"}},
	}
	entries := core.ExpandJob("build", job)

	require.Len(t, entries, 6)
	// Axes iterate sorted ("os" before "version"), values in declared order.
	assert.Equal(t, "build (linux, 3.6)", entries[0].Name)
	assert.Equal(t, "build (linux, 3.7)", entries[1].Name)
	assert.Equal(t, "build (darwin, 3.6)", entries[3].Name)
	assert.Equal(t, map[string]string{"os": "darwin", "version": "3.8"}, entries[5].Values)
}

// Every entry of one expansion runs the same step sequence; only the matrix
// values differ.
func TestExpandJobIdenticalSteps(t *testing.T) {
	t.Parallel()

	job := core.Job{
		Strategy: core.Strategy{
			Matrix: map[string][]core.MatrixValue{"version": {"3.6", "3.7", "3.8"}},
		},
		Steps: []core.Step{
			{Name: "lint", Run: "flake8 ."},
			{Name: "test", Run: "python manage.py test"},
		},
	}
	entries := core.ExpandJob("build", job)

	require.Len(t, entries, 3)
	for _, entry := range entries[1:] {
		assert.Equal(t, entries[0].Steps, entry.Steps)
	}
}

func TestExpandJobSubstitution(t *testing.T) {
	t.Parallel()

	job := core.Job{
		Strategy: core.Strategy{
			Matrix: map[string][]core.MatrixValue{"python-version": {"3.8"}},
		},
		Steps: []core.Step{{
			Name:    "Set up Python ${{ matrix.python-version }}",
			Run:     "pyenv local ${{ matrix.python-version }}",
			Workdir: "py${{ matrix.python-version }}",
			Env: map[string]string{
				"VERSION": "${{ matrix.python-version }}",
				"OTHER":   "${{ matrix.unknown }}",
			},
		}},
	}
	entries := core.ExpandJob("build", job)

	require.Len(t, entries, 1)
	step := entries[0].Steps[0]
	assert.Equal(t, "Set up Python 3.8", step.Name)
	assert.Equal(t, "pyenv local 3.8", step.Run)
	assert.Equal(t, "py3.8", step.Workdir)
	assert.Equal(t, "3.8", step.Env["VERSION"])
	// Unknown axes stay visible instead of silently vanishing.
	assert.Equal(t, "${{ matrix.unknown }}", step.Env["OTHER"])
}

func TestMatrixEnv(t *testing.T) {
	t.Parallel()

	entry := core.Entry{Values: map[string]string{"python-version": "3.7", "os": "linux"}}
	env := entry.MatrixEnv()

	assert.Equal(t, "3.7", env["MATRIX_PYTHON_VERSION"])
	assert.Equal(t, "linux", env["MATRIX_OS"])
}
