package commit

import (
	"context"
	"errors"

	"github.com/kilianp07/crewsched/core/model"
)

// ErrNotFound is returned by Persistence when an id does not exist.
var ErrNotFound = errors.New("assignment not found")

// Persistence stores assignments. The server copy it returns is
// authoritative: Create assigns the id and both Create and Update may
// rewrite fields.
type Persistence interface {
	Create(ctx context.Context, a model.Assignment) (model.Assignment, error)
	Update(ctx context.Context, a model.Assignment) (model.Assignment, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, day model.DayKey) ([]model.Assignment, error)
}
