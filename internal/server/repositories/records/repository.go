// Package records stores accepted ingest records. Records are append-only.
package records

import (
	"context"

	"github.com/dmitrijs2005/plantgate/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rec *models.IngestRecord) (*models.IngestRecord, error)
	ListByPlant(ctx context.Context, plantID string, limit int) ([]*models.IngestRecord, error)
}
