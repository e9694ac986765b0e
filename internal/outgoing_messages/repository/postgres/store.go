package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
	"github.com/edigateway/golang_services/internal/outgoing_messages/repository/postgres/migrations"
	"github.com/edigateway/golang_services/internal/platform/database"
)

// Querier is the part of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool and pgxmock.PgxPoolIface.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements domain.Store on PostgreSQL.
type Store struct {
	db     DB
	logger *slog.Logger
	repositories
}

func NewStore(db DB, logger *slog.Logger) *Store {
	log := logger.With("component", "postgres_store")
	return &Store{db: db, logger: log, repositories: newRepositories(db, log)}
}

// WithinTransaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Repositories) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, newRepositories(tx, s.logger))
	})
}

type repositories struct {
	queues    *pgActorMessageQueueRepository
	messages  *pgOutgoingMessageRepository
	bundles   *pgBundleRepository
	documents *pgMarketDocumentRepository
	archive   *pgArchivedMessageRepository
}

func newRepositories(q Querier, logger *slog.Logger) repositories {
	bundles := &pgBundleRepository{db: q, logger: logger}
	return repositories{
		queues:    &pgActorMessageQueueRepository{db: q, bundles: bundles, logger: logger},
		messages:  &pgOutgoingMessageRepository{db: q, logger: logger},
		bundles:   bundles,
		documents: &pgMarketDocumentRepository{db: q, logger: logger},
		archive:   &pgArchivedMessageRepository{db: q, logger: logger},
	}
}

func (r repositories) ActorMessageQueues() domain.ActorMessageQueueRepository { return r.queues }
func (r repositories) OutgoingMessages() domain.OutgoingMessageRepository { return r.messages }
func (r repositories) Bundles() domain.BundleRepository { return r.bundles }
func (r repositories) MarketDocuments() domain.MarketDocumentRepository { return r.documents }
func (r repositories) ArchivedMessages() domain.ArchivedMessageRepository { return r.archive }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ domain.Store = (*Store)(nil)

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db database.TxBeginner) error {
	return database.ApplyPostgresMigrations(ctx, db, migrations.FS, ".")
}
