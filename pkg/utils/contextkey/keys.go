package contextkey

import "context"

// key is a private type to avoid context key collisions across packages.
type key string

const (
	RunID   key = "run_id"
	Day     key = "day"
	Problem key = "problem"
)

// WithRunID tags ctx with the id of the current invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunID, id)
}

// WithDay tags ctx with the contest day being rendered.
func WithDay(ctx context.Context, day string) context.Context {
	return context.WithValue(ctx, Day, day)
}

// WithProblem tags ctx with the problem being converted.
func WithProblem(ctx context.Context, problem string) context.Context {
	return context.WithValue(ctx, Problem, problem)
}
