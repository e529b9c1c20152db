package reactor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/petrijr/reactor/internal/codec"
	"github.com/petrijr/reactor/pkg/api"
)

// Arg derives one handler argument from the payload. Build it with PassArg
// or CopyArg.
type Arg[P, A any] struct {
	fn   func(P) A
	copy bool
}

// PassArg hands the value returned by fn to the handler as is. Handlers
// receiving a reference must not mutate it; mergers own the payload.
func PassArg[P, A any](fn func(P) A) Arg[P, A] {
	return Arg[P, A]{fn: fn}
}

// CopyArg hands the handler a deep copy of the value returned by fn. Values
// implementing Clone() A are copied with it, others through encoding/gob.
func CopyArg[P, A any](fn func(P) A) Arg[P, A] {
	return Arg[P, A]{fn: fn, copy: true}
}

func (a Arg[P, A]) resolve(p P) (A, error) {
	v := a.fn(p)
	if !a.copy {
		return v, nil
	}
	return codec.Clone(v)
}

func (a Arg[P, A]) binding(i int) api.ArgBinding {
	return api.ArgBinding{Index: i, Type: typeOf[A]().String(), Copy: a.copy}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Handler is the asynchronous operation of a processor. Its arguments are
// derived from the payload while mergers are held off; the handler body then
// runs concurrently and returns a result of type R that the processor's
// merger folds back into the payload.
type Handler[P, R any] struct {
	args []api.ArgBinding
	bind func(p P) (call[R], error)
	err  error
}

// call is a handler body bound to its arguments.
type call[R any] func(ctx context.Context) (R, error)

func newHandler[P, R any](bind func(p P) (call[R], error), bindings ...api.ArgBinding) Handler[P, R] {
	return Handler[P, R]{args: bindings, bind: bind}
}

func invalidHandler[P, R any](format string, args ...any) Handler[P, R] {
	return Handler[P, R]{err: fmt.Errorf(format, args...)}
}

var errNilArg = errors.New("argument has no accessor")

// Handler0 adapts a handler taking no payload arguments.
func Handler0[P, R any](fn func(ctx context.Context) (R, error)) Handler[P, R] {
	if fn == nil {
		return invalidHandler[P, R]("handler function is nil")
	}
	return newHandler(func(P) (call[R], error) {
		return fn, nil
	})
}

// Handler1 adapts a handler taking one argument derived from the payload.
func Handler1[P, R, A1 any](a1 Arg[P, A1], fn func(ctx context.Context, v1 A1) (R, error)) Handler[P, R] {
	switch {
	case fn == nil:
		return invalidHandler[P, R]("handler function is nil")
	case a1.fn == nil:
		return invalidHandler[P, R]("argument 0: %w", errNilArg)
	}
	return newHandler(func(p P) (call[R], error) {
		v1, err := a1.resolve(p)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (R, error) { return fn(ctx, v1) }, nil
	}, a1.binding(0))
}

// Handler2 adapts a handler taking two arguments derived from the payload.
func Handler2[P, R, A1, A2 any](a1 Arg[P, A1], a2 Arg[P, A2], fn func(ctx context.Context, v1 A1, v2 A2) (R, error)) Handler[P, R] {
	switch {
	case fn == nil:
		return invalidHandler[P, R]("handler function is nil")
	case a1.fn == nil:
		return invalidHandler[P, R]("argument 0: %w", errNilArg)
	case a2.fn == nil:
		return invalidHandler[P, R]("argument 1: %w", errNilArg)
	}
	return newHandler(func(p P) (call[R], error) {
		v1, err := a1.resolve(p)
		if err != nil {
			return nil, err
		}
		v2, err := a2.resolve(p)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (R, error) { return fn(ctx, v1, v2) }, nil
	}, a1.binding(0), a2.binding(1))
}

// Handler3 adapts a handler taking three arguments derived from the payload.
func Handler3[P, R, A1, A2, A3 any](
	a1 Arg[P, A1], a2 Arg[P, A2], a3 Arg[P, A3],
	fn func(ctx context.Context, v1 A1, v2 A2, v3 A3) (R, error),
) Handler[P, R] {
	switch {
	case fn == nil:
		return invalidHandler[P, R]("handler function is nil")
	case a1.fn == nil:
		return invalidHandler[P, R]("argument 0: %w", errNilArg)
	case a2.fn == nil:
		return invalidHandler[P, R]("argument 1: %w", errNilArg)
	case a3.fn == nil:
		return invalidHandler[P, R]("argument 2: %w", errNilArg)
	}
	return newHandler(func(p P) (call[R], error) {
		v1, err := a1.resolve(p)
		if err != nil {
			return nil, err
		}
		v2, err := a2.resolve(p)
		if err != nil {
			return nil, err
		}
		v3, err := a3.resolve(p)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (R, error) { return fn(ctx, v1, v2, v3) }, nil
	}, a1.binding(0), a2.binding(1), a3.binding(2))
}

// Handler4 adapts a handler taking four arguments derived from the payload.
func Handler4[P, R, A1, A2, A3, A4 any](
	a1 Arg[P, A1], a2 Arg[P, A2], a3 Arg[P, A3], a4 Arg[P, A4],
	fn func(ctx context.Context, v1 A1, v2 A2, v3 A3, v4 A4) (R, error),
) Handler[P, R] {
	switch {
	case fn == nil:
		return invalidHandler[P, R]("handler function is nil")
	case a1.fn == nil:
		return invalidHandler[P, R]("argument 0: %w", errNilArg)
	case a2.fn == nil:
		return invalidHandler[P, R]("argument 1: %w", errNilArg)
	case a3.fn == nil:
		return invalidHandler[P, R]("argument 2: %w", errNilArg)
	case a4.fn == nil:
		return invalidHandler[P, R]("argument 3: %w", errNilArg)
	}
	return newHandler(func(p P) (call[R], error) {
		v1, err := a1.resolve(p)
		if err != nil {
			return nil, err
		}
		v2, err := a2.resolve(p)
		if err != nil {
			return nil, err
		}
		v3, err := a3.resolve(p)
		if err != nil {
			return nil, err
		}
		v4, err := a4.resolve(p)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (R, error) { return fn(ctx, v1, v2, v3, v4) }, nil
	}, a1.binding(0), a2.binding(1), a3.binding(2), a4.binding(3))
}

// Handler5 adapts a handler taking five arguments derived from the payload.
func Handler5[P, R, A1, A2, A3, A4, A5 any](
	a1 Arg[P, A1], a2 Arg[P, A2], a3 Arg[P, A3], a4 Arg[P, A4], a5 Arg[P, A5],
	fn func(ctx context.Context, v1 A1, v2 A2, v3 A3, v4 A4, v5 A5) (R, error),
) Handler[P, R] {
	switch {
	case fn == nil:
		return invalidHandler[P, R]("handler function is nil")
	case a1.fn == nil:
		return invalidHandler[P, R]("argument 0: %w", errNilArg)
	case a2.fn == nil:
		return invalidHandler[P, R]("argument 1: %w", errNilArg)
	case a3.fn == nil:
		return invalidHandler[P, R]("argument 2: %w", errNilArg)
	case a4.fn == nil:
		return invalidHandler[P, R]("argument 3: %w", errNilArg)
	case a5.fn == nil:
		return invalidHandler[P, R]("argument 4: %w", errNilArg)
	}
	return newHandler(func(p P) (call[R], error) {
		v1, err := a1.resolve(p)
		if err != nil {
			return nil, err
		}
		v2, err := a2.resolve(p)
		if err != nil {
			return nil, err
		}
		v3, err := a3.resolve(p)
		if err != nil {
			return nil, err
		}
		v4, err := a4.resolve(p)
		if err != nil {
			return nil, err
		}
		v5, err := a5.resolve(p)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (R, error) { return fn(ctx, v1, v2, v3, v4, v5) }, nil
	}, a1.binding(0), a2.binding(1), a3.binding(2), a4.binding(3), a5.binding(4))
}

// erase turns a typed handler into the api form.
func (h Handler[P, R]) erase() api.HandlerFunc {
	bind := h.bind
	return func(payload any) (api.HandlerCall, error) {
		c, err := bind(payload.(P))
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (any, error) { return c(ctx) }, nil
	}
}

// as converts an erased value back to T. A nil value yields T's zero value.
func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}
