package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/plantgate/internal/dbx"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/plants"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/records"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Plants(db dbx.DBTX) plants.Repository
	Records(db dbx.DBTX) records.Repository
}
