package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upTombstones, downTombstones)
}

// upTombstones adds swept_at to catalogs created before sweeps kept records.
func upTombstones(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := open(tx)
	if err != nil {
		return err
	}
	m := gormDB.WithContext(ctx).Migrator()
	if m.HasColumn(&Artifact{}, "SweptAt") {
		return nil
	}
	return m.AddColumn(&Artifact{}, "SweptAt")
}

func downTombstones(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := open(tx)
	if err != nil {
		return err
	}
	m := gormDB.WithContext(ctx).Migrator()
	if !m.HasColumn(&Artifact{}, "SweptAt") {
		return nil
	}
	return m.DropColumn(&Artifact{}, "SweptAt")
}
