package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
)

// migrate creates the schema on a fresh database. A database written by
// another schema version is backed up next to it and recreated.
func migrate(db *sql.DB, path string, log logger.Logger) error {
	errFactory := errors.New()

	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	if version == SchemaVersion {
		log.Debug().Int("version", version).Msg("History schema is current")
		return nil
	}

	if version != 0 {
		if _, err := backup(db, path, version, log); err != nil {
			return errFactory.Wrap(ErrSchemaMigration, err)
		}
	}

	if err := dropTables(db, log); err != nil {
		return err
	}
	return initSchema(db, log)
}

func backup(db *sql.DB, path string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	dir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrSchemaMigration, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup_dir",
			Path:  dir,
			Error: err.Error(),
		})
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	target := filepath.Join(dir, fmt.Sprintf("history_v%d_%s.db", version, stamp))

	// VACUUM INTO takes a literal, not a bound parameter.
	quoted := strings.ReplaceAll(target, "'", "''")
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return "", errFactory.WithData(ErrSchemaMigration, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  target,
			Error: err.Error(),
		})
	}

	log.Info().Str("path", target).Int("version", version).Msg("History database backed up")

	return target, nil
}

func dropTables(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigration, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback drop tables")
			}
		}
	}()

	for _, table := range tables {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return errFactory.WithData(ErrSchemaMigration, struct {
				Table string
				Error string
			}{
				Table: table,
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaMigration, err)
	}
	committed = true

	return nil
}
