package history

import (
	"database/sql"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	CREATE TABLE IF NOT EXISTS schema_versions (
	    version     INTEGER PRIMARY KEY,
	    applied_at  TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transitions (
	    id          INTEGER PRIMARY KEY AUTOINCREMENT,
	    time        INTEGER NOT NULL,
	    monitor_id  TEXT NOT NULL,
	    from_phase  TEXT NOT NULL,
	    to_phase    TEXT NOT NULL,
	    reason      TEXT NOT NULL,
	    session_id  TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS transitions_monitor ON transitions (monitor_id, time);`

	insertTransitionSQL = `
	INSERT INTO transitions (time, monitor_id, from_phase, to_phase, reason, session_id)
	VALUES (?, ?, ?, ?, ?, ?)`

	recentTransitionsSQL = `
	SELECT time, monitor_id, from_phase, to_phase, reason, session_id
	FROM transitions
	ORDER BY id DESC
	LIMIT ?`

	pruneTransitionsSQL = `DELETE FROM transitions WHERE time < ?`
)

var tables = []string{"transitions", "schema_versions"}

func initSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback schema creation")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInit, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
	    INSERT INTO schema_versions (version, applied_at)
	    VALUES (?, datetime('now'))
	`, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInit, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}
	committed = true

	log.Info().Int("version", SchemaVersion).Msg("History schema initialized")

	return nil
}

// schemaVersion returns 0 for a database without a version table.
func schemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := tableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidation, err)
	}

	return version, nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
	    SELECT EXISTS (
	        SELECT 1 FROM sqlite_master
	        WHERE type='table' AND name=?
	    )
	`, name).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidation, struct {
			Table string
			Error string
		}{
			Table: name,
			Error: err.Error(),
		})
	}
	return exists, nil
}
