package tasks_service

import (
	"context"
	"fmt"
)

type attemptKey struct{}

type attempt struct {
	n   int
	max int
}

// WithAttempt tells a handler which attempt of how many it is running.
func WithAttempt(ctx context.Context, n, max int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt{n: n, max: max})
}

// LastAttempt reports whether a failure now would exhaust the task. Outside a task it is false.
func LastAttempt(ctx context.Context) bool {
	a, ok := ctx.Value(attemptKey{}).(attempt)
	return ok && a.max > 0 && a.n >= a.max
}

// PanicError is a handler panic turned into a task failure.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task handler panicked: %v", e.Value)
}
