package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/petrijr/reactor/internal/persistence"
	"github.com/petrijr/reactor/pkg/api"
	"github.com/petrijr/reactor/pkg/validation"
)

// Reactor is the in-process graph execution engine.
type Reactor struct {
	// regMu keeps the registry and the model store in step.
	regMu    sync.Mutex
	registry *graphRegistry
	running  *inflight

	models   persistence.ModelStore
	events   persistence.EventStore
	observer api.Observer
	logger   *slog.Logger

	validators []api.Validator
	timeout    time.Duration
}

var _ api.Reactor = (*Reactor)(nil)

// Config describes how to construct a Reactor.
// Zero values select in-memory stores, no observer and slog.Default().
type Config struct {
	Persistence persistence.Persistence
	Observer    api.Observer
	Logger      *slog.Logger

	// Validators run after the default structural validators.
	Validators []api.Validator

	// DefaultTimeout bounds the result future of Submit. Zero means no bound.
	DefaultTimeout time.Duration
}

// NewInMemoryReactor returns a Reactor keeping models and history in memory.
func NewInMemoryReactor() *Reactor {
	return New(Config{Persistence: persistence.NewInMemoryPersistence()})
}

// NewInMemoryReactorWithObserver is NewInMemoryReactor with an observer.
func NewInMemoryReactorWithObserver(obs api.Observer) *Reactor {
	return New(Config{Persistence: persistence.NewInMemoryPersistence(), Observer: obs})
}

// NewSQLiteReactor returns a Reactor storing models and history in db.
func NewSQLiteReactor(db *sql.DB) (*Reactor, error) {
	p, err := NewSQLitePersistence(db)
	if err != nil {
		return nil, err
	}
	return New(Config{Persistence: p}), nil
}

// NewSQLitePersistence creates the SQLite model and event stores on db.
func NewSQLitePersistence(db *sql.DB) (persistence.Persistence, error) {
	models, err := persistence.NewSQLiteModelStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	return persistence.Persistence{Models: models, Events: events}, nil
}

// NewMySQLPersistence creates the MySQL model and event stores on db.
func NewMySQLPersistence(db *sql.DB) (persistence.Persistence, error) {
	models, err := persistence.NewMySQLModelStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	events, err := persistence.NewMySQLEventStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	return persistence.Persistence{Models: models, Events: events}, nil
}

// New creates a Reactor using the given configuration.
func New(cfg Config) *Reactor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mem := persistence.NewInMemoryStore()
	models := cfg.Persistence.Models
	if models == nil {
		models = mem
	}
	events := cfg.Persistence.Events
	if events == nil {
		events = mem
	}

	obs := []api.Observer{newHistoryObserver(events, logger)}
	if cfg.Observer != nil {
		obs = append(obs, cfg.Observer)
	}

	return &Reactor{
		registry:   newGraphRegistry(),
		running:    newInflight(),
		models:     models,
		events:     events,
		observer:   api.NewCompositeObserver(obs...),
		logger:     logger,
		validators: append(validation.Default(), cfg.Validators...),
		timeout:    cfg.DefaultTimeout,
	}
}

// Register validates g, saves its model and makes it the graph for its
// payload type. A graph already registered is accepted without changes; a
// different graph for the same payload type replaces the previous one and
// the previous model is removed when its name differs.
func (r *Reactor) Register(g *api.Graph) error {
	if g == nil {
		return errors.New("register: graph is nil")
	}
	if r.registry.Contains(g) {
		return nil
	}
	if err := validation.Run(g, r.validators...); err != nil {
		return err
	}
	p, err := compile(g)
	if err != nil {
		return err
	}

	r.regMu.Lock()
	defer r.regMu.Unlock()

	ctx := context.Background()
	if err := r.registry.CheckName(g); err != nil {
		return err
	}
	if err := r.models.SaveModel(ctx, g.Model()); err != nil {
		return fmt.Errorf("register %q: save model: %w", g.Name(), err)
	}
	replaced, err := r.registry.Register(p)
	if err != nil {
		return err
	}
	if replaced != nil {
		r.logger.Warn("graph_replaced",
			slog.String("graph", g.Name()),
			slog.String("previous", replaced.Name()),
			slog.String("payload", api.TypeName(g.PayloadType())),
		)
		if replaced.Name() != g.Name() {
			if err := r.models.DeleteModel(ctx, replaced.Name()); err != nil {
				r.logger.Error("delete_replaced_model",
					slog.String("graph", replaced.Name()),
					slog.Any("error", err),
				)
			}
		}
	}
	r.logger.Info("graph_registered",
		slog.String("graph", g.Name()),
		slog.Int("items", len(g.Items())),
	)
	return nil
}

func (r *Reactor) Graphs() []*api.Graph {
	return r.registry.Graphs()
}

// Submit starts an execution of the graph registered for the payload's
// dynamic type, bounded by the configured default timeout.
func (r *Reactor) Submit(ctx context.Context, payload any) (*api.Execution, error) {
	return r.SubmitWithTimeout(ctx, payload, r.timeout)
}

func (r *Reactor) SubmitWithTimeout(ctx context.Context, payload any, timeout time.Duration) (*api.Execution, error) {
	if v := reflect.ValueOf(payload); payload == nil || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return nil, fmt.Errorf("%w: payload is nil", api.ErrGraphNotRegistered)
	}
	t := reflect.TypeOf(payload)
	p, ok := r.registry.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w for payload type %s", api.ErrGraphNotRegistered, api.TypeName(t))
	}
	x := r.start(ctx, p, payload, "", &sync.Mutex{}, timeout)
	return x.exec, nil
}

func (r *Reactor) ListModels(ctx context.Context) ([]string, error) {
	return r.models.ListModels(ctx)
}

func (r *Reactor) GetModel(ctx context.Context, name string) (api.GraphModel, error) {
	return r.models.GetModel(ctx, name)
}

func (r *Reactor) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
	return r.events.ListEvents(ctx, executionID)
}

// Running lists executions whose chain has not completed, oldest first.
func (r *Reactor) Running() []api.ExecutionStatus {
	return r.running.snapshot()
}
