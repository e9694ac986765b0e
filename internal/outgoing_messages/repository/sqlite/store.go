// Package sqlite stores actor message queues in a single SQLite file. It serves single node
// deployments and tests; writers are serialized by the database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
	"github.com/edigateway/golang_services/internal/outgoing_messages/repository/sqlite/migrations"
	"github.com/edigateway/golang_services/internal/platform/database"
)

// querier is the part of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.Store on SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	repositories
}

// Open opens the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := database.ApplySQLiteMigrations(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log := logger.With("component", "sqlite_store")
	return &Store{db: db, logger: log, repositories: newRepositories(db)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithinTransaction runs fn on a transaction. fn must only use the repositories it is given:
// the database has a single connection.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type repositories struct {
	queues    *actorMessageQueueRepository
	messages  *outgoingMessageRepository
	bundles   *bundleRepository
	documents *marketDocumentRepository
	archive   *archivedMessageRepository
}

func newRepositories(q querier) repositories {
	return repositories{
		queues:    &actorMessageQueueRepository{db: q},
		messages:  &outgoingMessageRepository{db: q},
		bundles:   &bundleRepository{db: q},
		documents: &marketDocumentRepository{db: q},
		archive:   &archivedMessageRepository{db: q},
	}
}

func (r repositories) ActorMessageQueues() domain.ActorMessageQueueRepository { return r.queues }
func (r repositories) OutgoingMessages() domain.OutgoingMessageRepository { return r.messages }
func (r repositories) Bundles() domain.BundleRepository { return r.bundles }
func (r repositories) MarketDocuments() domain.MarketDocumentRepository { return r.documents }
func (r repositories) ArchivedMessages() domain.ArchivedMessageRepository { return r.archive }

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// Timestamps are stored as UTC unix nanoseconds so they sort numerically.
func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}

var _ domain.Store = (*Store)(nil)
