// Package plants stores plant identities and their origin whitelists.
package plants

import (
	"context"

	"github.com/dmitrijs2005/plantgate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, plant *models.Plant) (*models.Plant, error)
	GetByEmail(ctx context.Context, email string) (*models.Plant, error)
	List(ctx context.Context) ([]*models.Plant, error)
	// AddWhitelistedIP reports false when ip was already whitelisted.
	AddWhitelistedIP(ctx context.Context, plantID, ip string) (bool, error)
	MarkVerified(ctx context.Context, plantID string) error
}
