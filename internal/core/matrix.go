package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Entry is one matrix combination of a job, carrying the job's step sequence
// with matrix placeholders substituted.
type Entry struct {
	Job    string
	Name   string
	Values map[string]string
	Steps  []Step
}

var matrixRef = regexp.MustCompile(`\$\{\{\s*matrix\.([A-Za-z0-9_-]+)\s*\}\}`)

// ExpandJob expands a job's matrix into entries. Axes are iterated in sorted
// order with values in declared order, so expansion is deterministic. A job
// without a matrix yields a single entry.
func ExpandJob(name string, job Job) []Entry {
	axes := make([]string, 0, len(job.Strategy.Matrix))
	for axis := range job.Strategy.Matrix {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	combos := []map[string]string{{}}
	for _, axis := range axes {
		next := make([]map[string]string, 0, len(combos)*len(job.Strategy.Matrix[axis]))
		for _, combo := range combos {
			for _, value := range job.Strategy.Matrix[axis] {
				expanded := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					expanded[k] = v
				}
				expanded[axis] = string(value)
				next = append(next, expanded)
			}
		}
		combos = next
	}

	entries := make([]Entry, 0, len(combos))
	for _, values := range combos {
		entries = append(entries, Entry{
			Job:    name,
			Name:   entryName(name, axes, values),
			Values: values,
			Steps:  substituteSteps(job.Steps, values),
		})
	}
	return entries
}

// entryName renders "job (v1, v2)" with values in axis order.
func entryName(job string, axes []string, values map[string]string) string {
	if len(axes) == 0 {
		return job
	}
	parts := make([]string, 0, len(axes))
	for _, axis := range axes {
		parts = append(parts, values[axis])
	}
	return fmt.Sprintf("%s (%s)", job, strings.Join(parts, ", "))
}

func substituteSteps(steps []Step, values map[string]string) []Step {
	out := make([]Step, len(steps))
	for i, step := range steps {
		step.Name = substitute(step.Name, values)
		step.Run = substitute(step.Run, values)
		step.Workdir = substitute(step.Workdir, values)
		if len(step.Env) > 0 {
			env := make(map[string]string, len(step.Env))
			for k, v := range step.Env {
				env[k] = substitute(v, values)
			}
			step.Env = env
		}
		out[i] = step
	}
	return out
}

// substitute replaces ${{ matrix.<axis> }} references. Unknown axes are left
// untouched so the failure is visible in the executed command.
func substitute(s string, values map[string]string) string {
	if !strings.Contains(s, "${{") {
		return s
	}
	return matrixRef.ReplaceAllStringFunc(s, func(ref string) string {
		axis := matrixRef.FindStringSubmatch(ref)[1]
		if value, ok := values[axis]; ok {
			return value
		}
		return ref
	})
}

// MatrixEnv renders entry values as MATRIX_<AXIS> environment variables.
func (e Entry) MatrixEnv() map[string]string {
	env := make(map[string]string, len(e.Values))
	for axis, value := range e.Values {
		key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(axis))
		env["MATRIX_"+key] = value
	}
	return env
}
