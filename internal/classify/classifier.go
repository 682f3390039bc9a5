// Package classify assigns a ticket category from the free-text problem
// description.
package classify

import (
	"context"

	"github.com/spec-kit/smart-support/internal/domain"
)

// Classifier derives a category from a problem description. A ticket
// submission must never fail because of classification: implementations
// that depend on an external backend fall back to the keyword heuristic
// instead of returning an error, so the error return is reserved for a
// cancelled context.
type Classifier interface {
	Classify(ctx context.Context, problem string) (domain.TicketCategory, error)
}
