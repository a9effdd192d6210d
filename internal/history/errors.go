package history

import "codeberg.org/mutker/monitornap/internal/errors"

const (
	ErrInvalidDBPath = errors.ErrorCode("history_invalid_db_path")

	ErrSchemaInit       = errors.ErrorCode("history_schema_init_failed")
	ErrSchemaValidation = errors.ErrorCode("history_schema_validation_failed")
	ErrSchemaMigration  = errors.ErrorCode("history_schema_migration_failed")
	ErrTransaction      = errors.ErrorCode("history_transaction_failed")
	ErrQuery            = errors.ErrorCode("history_query_failed")

	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
)
