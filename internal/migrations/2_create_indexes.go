package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	// Migration 2: indexes. The unique pair index backs the natural key
	// the upsert path resolves against.
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_facilities_name_address ON facilities(name, address)",
			"CREATE INDEX IF NOT EXISTS idx_facilities_category ON facilities(category)",
			"CREATE INDEX IF NOT EXISTS idx_facilities_coords ON facilities(latitude, longitude)",
			"CREATE INDEX IF NOT EXISTS idx_import_runs_source ON import_runs(source)",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS ux_facilities_name_address",
			"DROP INDEX IF EXISTS idx_facilities_category",
			"DROP INDEX IF EXISTS idx_facilities_coords",
			"DROP INDEX IF EXISTS idx_import_runs_source",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	})
}
