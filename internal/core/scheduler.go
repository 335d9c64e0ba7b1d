package core

import (
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// OrderJobs returns job names in an order where every job appears after the
// jobs it needs. Ties are broken alphabetically so the order is stable.
func OrderJobs(w *Workflow) ([]string, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	names := make([]string, 0, len(w.Jobs))
	for name := range w.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := g.AddVertex(name); err != nil {
			return nil, errors.Wrapf(err, "add job %q", name)
		}
	}
	for _, name := range names {
		for _, need := range w.Jobs[name].Needs {
			if err := g.AddEdge(need, name); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return nil, errors.Errorf("job %q: needs cycle through %q", name, need)
				}
				if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return nil, errors.Wrapf(err, "job %q needs %q", name, need)
				}
			}
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, errors.Wrap(err, "order jobs")
	}
	return order, nil
}
