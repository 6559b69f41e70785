package plants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/dbx"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, plant *models.Plant) (*models.Plant, error) {
	query :=
		`INSERT INTO plants (id, name, email, password_hash, is_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		plant.ID, plant.Name, plant.Email, plant.PasswordHash, plant.IsVerified).Scan(&plant.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return plant, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Plant, error) {
	query :=
		`SELECT id, name, email, password_hash, is_verified, created_at FROM plants
		 WHERE email = $1`

	p := &models.Plant{}
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.IsVerified, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	ips, err := r.whitelist(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.WhitelistedIPs = ips

	return p, nil
}

func (r *PostgresRepository) whitelist(ctx context.Context, plantID string) ([]string, error) {
	query :=
		`SELECT ip_address FROM plant_whitelist
		 WHERE plant_id = $1
		 ORDER BY created_at, ip_address`

	rows, err := r.db.QueryContext(ctx, query, plantID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ips := []string{}
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ips = append(ips, ip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ips, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Plant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, is_verified, created_at FROM plants
		 ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Plant
	byID := map[string]*models.Plant{}
	for rows.Next() {
		p := &models.Plant{WhitelistedIPs: []string{}}
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.IsVerified, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	wl, err := r.db.QueryContext(ctx,
		`SELECT plant_id, ip_address FROM plant_whitelist
		 ORDER BY created_at, ip_address`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer wl.Close()

	for wl.Next() {
		var plantID, ip string
		if err := wl.Scan(&plantID, &ip); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if p, ok := byID[plantID]; ok {
			p.WhitelistedIPs = append(p.WhitelistedIPs, ip)
		}
	}
	if err := wl.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) AddWhitelistedIP(ctx context.Context, plantID, ip string) (bool, error) {
	query :=
		`INSERT INTO plant_whitelist (plant_id, ip_address)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, plantID, ip)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, plantID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE plants SET is_verified = TRUE WHERE id = $1`, plantID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
