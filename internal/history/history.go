package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/monitornap/internal/engine"
	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
	"codeberg.org/mutker/monitornap/internal/monitor"
	_ "github.com/mattn/go-sqlite3"
)

// Log persists phase transitions.
type Log interface {
	engine.Recorder
	// Recent returns up to limit transitions, oldest first.
	Recent(ctx context.Context, limit int) ([]engine.Transition, error)
	// Prune deletes transitions older than before.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

type noopLog struct{}

func (noopLog) RecordTransition(engine.Transition) {}

func (noopLog) Recent(context.Context, int) ([]engine.Transition, error) { return nil, nil }

func (noopLog) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (noopLog) Close() error { return nil }

// store buffers transitions in memory and writes them in batches from a
// background flusher.
type store struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config

	// flushMu serializes writers; mu only guards buffer and is never held
	// during database I/O.
	flushMu sync.Mutex
	mu      sync.Mutex
	buffer  []engine.Transition
	dropped int

	kick     chan struct{}
	shutdown chan struct{}
	done     chan struct{}
	closed   sync.Once
}

// New opens the history database. A disabled config yields a log that
// discards everything.
func New(cfg Config, log logger.Logger) (Log, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if !cfg.Enabled {
		log.Debug().Msg("Transition history disabled")
		return noopLog{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db, cfg.DBPath, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	s := &store{
		db:       db,
		logger:   log,
		cfg:      cfg,
		buffer:   make([]engine.Transition, 0, cfg.BatchSize),
		kick:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.flusher()

	log.Info().
		Str("path", cfg.DBPath).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("Transition history opened")

	return s, nil
}

// RecordTransition never blocks on the database; a full buffer wakes the
// flusher.
func (s *store) RecordTransition(t engine.Transition) {
	s.mu.Lock()
	s.buffer = append(s.buffer, t)
	s.capLocked()
	full := len(s.buffer) >= s.cfg.BatchSize
	s.mu.Unlock()

	if full {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

func (s *store) Recent(ctx context.Context, limit int) ([]engine.Transition, error) {
	errFactory := errors.New()

	if limit < 1 {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, "limit must be at least 1")
	}

	if err := s.flush(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, recentTransitionsSQL, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrQuery, err)
	}
	defer rows.Close()

	var out []engine.Transition
	for rows.Next() {
		var (
			nanos    int64
			id       string
			from, to string
			t        engine.Transition
		)
		if err := rows.Scan(&nanos, &id, &from, &to, &t.Reason, &t.SessionID); err != nil {
			return nil, errFactory.Wrap(ErrQuery, err)
		}
		if err := t.From.UnmarshalText([]byte(from)); err != nil {
			return nil, errFactory.Wrap(ErrQuery, err)
		}
		if err := t.To.UnmarshalText([]byte(to)); err != nil {
			return nil, errFactory.Wrap(ErrQuery, err)
		}
		t.Time = time.Unix(0, nanos).UTC()
		t.MonitorID = monitor.ID(id)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrQuery, err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, pruneTransitionsSQL, before.UnixNano())
	if err != nil {
		return 0, errors.New().Wrap(ErrQuery, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Debug().Int64("rows", n).Time("before", before).Msg("Pruned transition history")
	}
	return n, nil
}

func (s *store) Close() error {
	errFactory := errors.New()

	s.closed.Do(func() { close(s.shutdown) })
	<-s.done

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to checkpoint history WAL")
	}

	if err := s.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	s.logger.Info().Msg("Transition history closed")

	return nil
}

func (s *store) flusher() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.kick:
		case <-s.shutdown:
			s.flushLogged()
			return
		}
		s.flushLogged()
	}
}

func (s *store) flushLogged() {
	if err := s.flush(); err != nil {
		s.mu.Lock()
		pending, dropped := len(s.buffer), s.dropped
		s.mu.Unlock()
		s.logger.ErrorWithCode(errors.Coded(err, ErrTransaction)).
			Int("pending", pending).
			Int("dropped", dropped).
			Msg("Failed to flush transition history")
	}
}

// capLocked drops the oldest buffered records beyond MaxPending. The caller
// holds s.mu.
func (s *store) capLocked() {
	over := len(s.buffer) - s.cfg.MaxPending
	if over <= 0 {
		return
	}
	s.buffer = append(s.buffer[:0], s.buffer[over:]...)
	s.dropped += over
}

// flush takes the buffered records and writes them in one transaction. On
// failure they are put back in front of anything recorded meanwhile and
// retried on the next flush.
func (s *store) flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.buffer
	s.buffer = make([]engine.Transition, 0, s.cfg.BatchSize)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := s.write(batch); err != nil {
		s.mu.Lock()
		s.buffer = append(batch, s.buffer...)
		s.capLocked()
		s.mu.Unlock()
		return err
	}

	s.logger.Debug().Int("records", len(batch)).Msg("Flushed transition history")

	return nil
}

func (s *store) write(batch []engine.Transition) error {
	errFactory := errors.New()

	tx, err := s.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransaction, err)
	}

	stmt, err := tx.Prepare(insertTransitionSQL)
	if err != nil {
		_ = tx.Rollback()
		return errFactory.Wrap(ErrTransaction, err)
	}
	defer stmt.Close()

	for _, t := range batch {
		if _, err := stmt.Exec(
			t.Time.UnixNano(),
			string(t.MonitorID),
			t.From.String(),
			t.To.String(),
			t.Reason,
			t.SessionID,
		); err != nil {
			_ = tx.Rollback()
			return errFactory.Wrap(ErrTransaction, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransaction, err)
	}

	return nil
}
