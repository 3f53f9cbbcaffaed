package folderdb

import (
	"context"

	"github.com/starford/arbor/internal/models"
)

// Repository defines the folder persistence operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Repository interface {
	Insert(ctx context.Context, name string, parentID *string) (models.Record, error)
	Get(ctx context.Context, id string) (models.Record, error)
	List(ctx context.Context) ([]models.Record, error)
	Delete(ctx context.Context, id string) ([]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)
