package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/reactor/pkg/api"
)

func sampleModel(name string) api.GraphModel {
	return api.GraphModel{
		Name:    name,
		Payload: api.PayloadModel{Name: name, Type: "*app." + name},
		StartPoint: api.StartPointModel{
			Coordinates:     api.Coordinates{X: 500, Y: 100},
			ProcessingItems: []string{"Processor:Fetch@1"},
		},
		Processors: []api.ProcessorModel{{Identity: "Processor:Fetch@1", Title: "Fetch"}},
		Subgraphs:  []api.SubgraphModel{},
		MergePoints: []api.MergePointModel{{
			Identity: "Processor:Fetch@1",
			Transitions: []api.TransitionModel{
				{OnAny: true, Complete: true},
			},
		}},
		MergeGroups: []api.MergeGroupModel{},
	}
}

// exerciseModelStore runs the ModelStore contract against any implementation.
func exerciseModelStore(t *testing.T, s ModelStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.GetModel(ctx, "Order")
	require.ErrorIs(t, err, ErrModelNotFound)

	require.NoError(t, s.SaveModel(ctx, sampleModel("Order")))
	require.NoError(t, s.SaveModel(ctx, sampleModel("Invoice")))

	got, err := s.GetModel(ctx, "Order")
	require.NoError(t, err)
	require.Equal(t, "Order", got.Name)
	require.Equal(t, []string{"Processor:Fetch@1"}, got.StartPoint.ProcessingItems)
	require.True(t, got.MergePoints[0].Transitions[0].Complete)

	replaced := sampleModel("Order")
	replaced.Processors[0].Title = "Fetch again"
	require.NoError(t, s.SaveModel(ctx, replaced))
	got, err = s.GetModel(ctx, "Order")
	require.NoError(t, err)
	require.Equal(t, "Fetch again", got.Processors[0].Title)

	names, err := s.ListModels(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Invoice", "Order"}, names)

	require.NoError(t, s.DeleteModel(ctx, "Invoice"))
	require.NoError(t, s.DeleteModel(ctx, "Invoice"))
	_, err = s.GetModel(ctx, "Invoice")
	require.ErrorIs(t, err, ErrModelNotFound)
	names, err = s.ListModels(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Order"}, names)
}

// exerciseEventStore runs the EventStore contract against any implementation.
func exerciseEventStore(t *testing.T, s EventStore) {
	t.Helper()
	ctx := context.Background()
	at := time.Unix(1700000000, 0)

	require.NoError(t, s.AppendEvent(ctx, api.ExecutionEvent{ExecutionID: "e1", At: at, Type: api.EventExecutionStarted, Graph: "Order"}))
	require.NoError(t, s.AppendEvent(ctx, api.ExecutionEvent{ExecutionID: "e2", At: at, Type: api.EventExecutionStarted, Graph: "Order"}))
	require.NoError(t, s.AppendEvent(ctx, api.ExecutionEvent{
		ExecutionID: "e1", ParentID: "p0", At: at, Type: api.EventMergeCompleted,
		Graph: "Order", Item: "Processor:Fetch@1", Status: "OK",
	}))

	evs, err := s.ListEvents(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	require.Equal(t, api.EventExecutionStarted, evs[0].Type)
	require.Equal(t, api.EventMergeCompleted, evs[1].Type)
	require.Equal(t, "p0", evs[1].ParentID)
	require.Equal(t, "Processor:Fetch@1", evs[1].Item)
	require.Equal(t, api.MergeStatus("OK"), evs[1].Status)
	require.True(t, at.Equal(evs[1].At))

	none, err := s.ListEvents(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestInMemoryStore_Models(t *testing.T) {
	t.Parallel()
	exerciseModelStore(t, NewInMemoryStore())
}

func TestInMemoryStore_Events(t *testing.T) {
	t.Parallel()
	exerciseEventStore(t, NewInMemoryStore())
}

func TestNoopEventStore(t *testing.T) {
	t.Parallel()

	var s EventStore = NoopEventStore{}
	require.NoError(t, s.AppendEvent(context.Background(), api.ExecutionEvent{ExecutionID: "x"}))
	evs, err := s.ListEvents(context.Background(), "x")
	require.NoError(t, err)
	require.Empty(t, evs)
}
