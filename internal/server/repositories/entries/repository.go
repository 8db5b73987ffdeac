package entries

import (
	"context"

	"github.com/dmitrijs2005/failseed/internal/server/models"
)

// Repository persists conversation entries. Every operation is scoped by
// owner; an entry that belongs to someone else behaves as if it did not exist.
type Repository interface {
	Create(ctx context.Context, e *models.Entry) error
	Get(ctx context.Context, id, owner string) (*models.Entry, error)
	AppendTurn(ctx context.Context, id, owner string, expectedTurn int, user, assistant models.Message) (*models.Entry, error)
	Finalize(ctx context.Context, id, owner string, expectedTurn int, growth string, hint *string, category string) (*models.Entry, error)
	UpdateHintStatus(ctx context.Context, id, owner string, status models.HintStatus) (*models.Entry, error)
	ListCompleted(ctx context.Context, owner string) ([]*models.Entry, error)
	CountByOwner(ctx context.Context, owner string) (int, error)
	Delete(ctx context.Context, id, owner string) (bool, error)
}
