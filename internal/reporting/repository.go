package reporting

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("report not found")

type Repository interface {
	Create(ctx context.Context, r Report) (Report, error)
	Get(ctx context.Context, id string) (Report, error)
	List(ctx context.Context, f ListFilter) ([]Report, error)
	// Update persists status, file_url, error, generated_at and updated_at,
	// provided the stored status still equals from.
	Update(ctx context.Context, r Report, from Status) (Report, error)
	Delete(ctx context.Context, id string) error
}
