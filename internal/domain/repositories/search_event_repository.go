package repositories

import (
	"context"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
)

// SearchEventRepository appends search events to durable storage.
type SearchEventRepository interface {
	LogEvent(ctx context.Context, event *entities.SearchEvent) error
}
