package api

import (
	"errors"
	"fmt"
)

var (
	// ErrGraphDefinition is matched by every construction-time builder error.
	ErrGraphDefinition = errors.New("graph definition error")

	// ErrStructuralValidation is matched by every validator failure.
	ErrStructuralValidation = errors.New("structural validation error")

	// ErrUnhandledStatus is matched when a merger returns a status that no
	// transition of its merge point accepts.
	ErrUnhandledStatus = errors.New("unhandled merge status")

	// ErrTimeout is matched when a result future is not resolved within the
	// deadline given to SubmitWithTimeout.
	ErrTimeout = errors.New("execution timed out")

	// ErrGraphNotRegistered is returned when no graph is registered for a
	// payload type.
	ErrGraphNotRegistered = errors.New("graph not registered")

	// ErrNoCompletion resolves a result future when every branch finished
	// without any complete transition firing.
	ErrNoCompletion = errors.New("execution finished without reaching a complete transition")

	// ErrHandler and ErrMerger are matched by HandlerError and MergerError.
	ErrHandler = errors.New("handler failed")
	ErrMerger  = errors.New("merger failed")
)

// DefinitionError reports an invalid declaration made through the graph
// builder.
type DefinitionError struct {
	Item Identity
	Msg  string
}

func (e *DefinitionError) Error() string {
	if e.Item.IsZero() {
		return "graph definition: " + e.Msg
	}
	return fmt.Sprintf("graph definition: %s: %s", e.Item, e.Msg)
}

func (e *DefinitionError) Is(target error) bool { return target == ErrGraphDefinition }

// ValidationError reports a structural problem found by a Validator.
type ValidationError struct {
	Validator string
	Item      Identity
	Msg       string
}

func (e *ValidationError) Error() string {
	if e.Item.IsZero() {
		return fmt.Sprintf("validation %s: %s", e.Validator, e.Msg)
	}
	return fmt.Sprintf("validation %s: %s: %s", e.Validator, e.Item, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrStructuralValidation }

// UnhandledStatusError is fatal to the execution that produced it.
type UnhandledStatusError struct {
	MergePoint Identity
	Status     MergeStatus
}

func (e *UnhandledStatusError) Error() string {
	return fmt.Sprintf("merge point %s: unhandled merge status %q", e.MergePoint, e.Status)
}

func (e *UnhandledStatusError) Is(target error) bool { return target == ErrUnhandledStatus }

// HandlerError wraps an error returned (or a panic raised) by a handler.
type HandlerError struct {
	Item Identity
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s: %v", e.Item, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) Is(target error) bool { return target == ErrHandler }

// MergerError wraps an error returned (or a panic raised) by a merger.
type MergerError struct {
	Item Identity
	Err  error
}

func (e *MergerError) Error() string {
	return fmt.Sprintf("merger %s: %v", e.Item, e.Err)
}

func (e *MergerError) Unwrap() error { return e.Err }

func (e *MergerError) Is(target error) bool { return target == ErrMerger }
