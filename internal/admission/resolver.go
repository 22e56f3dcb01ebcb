package admission

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// DefaultMaxAttempts is the commit attempt budget per admission call.
const DefaultMaxAttempts = 3

// errBudgetExhausted is returned by Run when every attempt hit a stale version.
var errBudgetExhausted = errors.New("commit attempt budget exhausted")

// ConflictResolver retries an attempt while it fails with port.ErrStaleVersion,
// at most maxAttempts times in total.
type ConflictResolver struct {
	maxAttempts int
	log         zerolog.Logger
}

// NewConflictResolver creates a resolver. maxAttempts below 1 is raised to 1.
func NewConflictResolver(maxAttempts int, log zerolog.Logger) *ConflictResolver {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ConflictResolver{maxAttempts: maxAttempts, log: log}
}

// MaxAttempts returns the configured budget.
func (r *ConflictResolver) MaxAttempts() int { return r.maxAttempts }

// Run calls attempt with a 1-based attempt number. Any result other than a
// stale version (nil included) is returned as is. When the budget runs out
// Run returns an error wrapping both errBudgetExhausted and port.ErrStaleVersion.
func (r *ConflictResolver) Run(ctx context.Context, attempt func(ctx context.Context, n int) error) error {
	var last error
	for n := 1; n <= r.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := attempt(ctx, n)
		if !errors.Is(err, port.ErrStaleVersion) {
			return err
		}
		last = err
		r.log.Debug().Int("attempt", n).Int("max_attempts", r.maxAttempts).Msg("Version conflict, re-evaluating")
	}
	return errors.Join(errBudgetExhausted, last)
}
