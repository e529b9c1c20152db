package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/reactor/pkg/api"
)

// ErrModelNotFound is returned when no model is stored under a graph name.
var ErrModelNotFound = errors.New("graph model not found")

// ModelStore keeps the serialized model of every registered graph, keyed by
// graph name. Saving a model under an existing name replaces it.
type ModelStore interface {
	SaveModel(ctx context.Context, m api.GraphModel) error
	GetModel(ctx context.Context, name string) (api.GraphModel, error)
	// ListModels returns the stored graph names in ascending order.
	ListModels(ctx context.Context) ([]string, error)
	// DeleteModel removes the model stored under name. Deleting a missing
	// model is not an error.
	DeleteModel(ctx context.Context, name string) error
}
