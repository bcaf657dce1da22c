package repositories

import (
	"context"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
)

// EstablishmentRepository serves the canonical table through a process cache.
type EstablishmentRepository interface {
	// Load returns the current dataset, rereading the file when it changed or the TTL expired
	Load(ctx context.Context) (*entities.Dataset, error)

	// Invalidate drops the cached dataset so the next Load rereads the file
	Invalidate()
}
