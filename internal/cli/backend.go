package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/recordkeeper/internal/jsonfile"
	"github.com/mesh-intelligence/recordkeeper/internal/s3store"
	"github.com/mesh-intelligence/recordkeeper/internal/sqlstore"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

// sqliteFileName is the database file shared by every system in data_dir.
const sqliteFileName = "recordkeeper.db"

// openPersister returns the persister for sch selected by cfg.Backend.
func openPersister(ctx context.Context, cfg types.Config, sch *types.Schema) (types.Persister, error) {
	switch cfg.Backend {
	case types.BackendJSON:
		return jsonfile.New(filepath.Join(cfg.DataDir, sch.Document)), nil
	case types.BackendSQLite:
		return sqlstore.OpenSQLite(ctx, filepath.Join(cfg.DataDir, sqliteFileName), sch.Name)
	case types.BackendPostgres:
		return sqlstore.OpenPostgres(ctx, cfg.Postgres.DSN, sch.Name)
	case types.BackendS3:
		return s3store.New(ctx, cfg.S3, sch.Document)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, cfg.Backend)
	}
}
