package sources

import (
	"context"

	"github.com/KathenZK/research-agent/internal/models"
)

// Source interface defines the contract for all data sources
type Source interface {
	GetName() string
	Fetch(ctx context.Context, limit int) ([]models.Item, error)
	IsEnabled() bool
}
