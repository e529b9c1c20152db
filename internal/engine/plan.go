package engine

import (
	"fmt"

	"github.com/petrijr/reactor/pkg/api"
)

// plan is a graph compiled for execution. It is immutable and shared by all
// executions of the graph.
type plan struct {
	graph *api.Graph
	topo  *api.Topology

	// items holds the processing item of each vertex.
	items []api.ProcessingItem
	// inputs is the number of tokens each vertex waits for.
	inputs []int
	// gates lists, per handler vertex, the group merge vertices it signals
	// when it resolves.
	gates [][]int
	// member is the position of a merge vertex in its group, or -1.
	member []int
	// attached counts the vertices the result future waits for.
	attached int
}

func compile(g *api.Graph) (*plan, error) {
	topo, err := api.BuildTopology(g)
	if err != nil {
		return nil, fmt.Errorf("compile graph %q: %w", g.Name(), err)
	}

	p := &plan{
		graph:  g,
		topo:   topo,
		items:  make([]api.ProcessingItem, len(topo.Vertices)),
		inputs: make([]int, len(topo.Vertices)),
		gates:  make([][]int, len(topo.Vertices)),
		member: make([]int, len(topo.Vertices)),
	}
	for i, v := range topo.Vertices {
		it, ok := g.Item(v.Item)
		if !ok {
			return nil, fmt.Errorf("compile graph %q: item %s not found", g.Name(), v.Item)
		}
		p.items[i] = it
		p.member[i] = -1

		p.inputs[i] = v.Flows + v.Gates
		if v.Kind == api.VertexMerge && v.Handler >= 0 {
			p.inputs[i]++
		}
		if !v.Detached {
			p.attached++
		}
	}
	for _, grp := range topo.Groups {
		for pos, m := range grp.Members {
			p.member[m] = pos
		}
		for _, h := range grp.Handlers {
			for _, m := range grp.Members {
				if topo.Vertices[m].Handler != h {
					p.gates[h] = append(p.gates[h], m)
				}
			}
		}
	}
	return p, nil
}
