// Package services contains the server-side operations: logins, plant
// administration, origin verification and encrypted ingestion.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/plantgate/internal/dbx"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/repomanager"
)

// Outcome is the result of adding an origin to a plant's whitelist.
type Outcome int

const (
	Whitelisted Outcome = iota + 1
	AlreadyWhitelisted
)

func (o Outcome) String() string {
	switch o {
	case Whitelisted:
		return "whitelisted"
	case AlreadyWhitelisted:
		return "already_whitelisted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// whitelistOrigin adds a normalized origin to the plant's whitelist and
// marks it verified, in one transaction. An origin already present is left
// untouched. Lookup errors (including common.ErrorNotFound) pass through.
func whitelistOrigin(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager, email, origin string) (Outcome, error) {
	return dbx.WithTxResult(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) (Outcome, error) {
		repo := rm.Plants(tx)

		plant, err := repo.GetByEmail(ctx, email)
		if err != nil {
			return 0, err
		}

		outcome := AlreadyWhitelisted
		if !plant.IsWhitelisted(origin) {
			inserted, err := repo.AddWhitelistedIP(ctx, plant.ID, origin)
			if err != nil {
				return 0, err
			}
			if inserted {
				outcome = Whitelisted
			}
		}

		if outcome == Whitelisted || !plant.IsVerified {
			if err := repo.MarkVerified(ctx, plant.ID); err != nil {
				return 0, err
			}
		}

		return outcome, nil
	})
}
