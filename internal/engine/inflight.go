package engine

import (
	"sort"

	"github.com/orcaman/concurrent-map"

	"github.com/petrijr/reactor/pkg/api"
)

// inflight tracks executions whose chain has not completed yet.
type inflight struct {
	runs cmap.ConcurrentMap
}

func newInflight() *inflight {
	return &inflight{runs: cmap.New()}
}

func (i *inflight) add(x *run) {
	i.runs.Set(x.exec.ID, x)
}

func (i *inflight) remove(id string) {
	i.runs.Remove(id)
}

func (i *inflight) count() int {
	return i.runs.Count()
}

// snapshot lists in-flight executions, oldest first.
func (i *inflight) snapshot() []api.ExecutionStatus {
	out := make([]api.ExecutionStatus, 0, i.runs.Count())
	for _, v := range i.runs.Items() {
		x, ok := v.(*run)
		if !ok {
			continue
		}
		out = append(out, api.ExecutionStatus{
			ID:          x.exec.ID,
			ParentID:    x.exec.ParentID,
			Graph:       x.exec.Graph,
			SubmittedAt: x.exec.SubmittedAt,
			ResultDone:  x.exec.Result.IsDone(),
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].SubmittedAt.Equal(out[b].SubmittedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].SubmittedAt.Before(out[b].SubmittedAt)
	})
	return out
}
