package records

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/plantgate/internal/dbx"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.IngestRecord) (*models.IngestRecord, error) {
	query :=
		`INSERT INTO plant_logs (id, plant_id, ip_address, data_type, payload, blob_key, size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`

	var blobKey sql.NullString
	if rec.BlobKey != "" {
		blobKey = sql.NullString{String: rec.BlobKey, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		rec.ID, rec.PlantID, rec.IPAddress, string(rec.DataType), rec.Payload, blobKey, rec.Size).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) ListByPlant(ctx context.Context, plantID string, limit int) ([]*models.IngestRecord, error) {
	query :=
		`SELECT id, plant_id, ip_address, data_type, payload, blob_key, size, created_at FROM plant_logs
		 WHERE plant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, plantID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.IngestRecord
	for rows.Next() {
		rec := &models.IngestRecord{}
		var dataType string
		var blobKey sql.NullString
		if err := rows.Scan(&rec.ID, &rec.PlantID, &rec.IPAddress, &dataType, &rec.Payload, &blobKey, &rec.Size, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		rec.DataType = models.DataType(dataType)
		rec.BlobKey = blobKey.String
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
