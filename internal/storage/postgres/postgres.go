// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage"
	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage/models"
	"go.uber.org/zap"
)

var createTableQuery = `
CREATE TABLE IF NOT EXISTS broadcast_journal (
    id                  BIGSERIAL PRIMARY KEY,
    operation_id        VARCHAR(36)  NOT NULL,
    operation_name      VARCHAR(100) NOT NULL,
    tx_type             VARCHAR(32)  NOT NULL,
    chain               VARCHAR(32)  NOT NULL,
    network             VARCHAR(32)  NOT NULL,
    connector           VARCHAR(64)  NOT NULL,
    wallet_address      VARCHAR(64)  NOT NULL,
    signature           VARCHAR(128),
    status              VARCHAR(20)  NOT NULL,
    attempts            INTEGER      NOT NULL,
    priority_fee_per_cu BIGINT       NOT NULL,
    compute_units       BIGINT       NOT NULL,
    error_message       TEXT,
    fee_sol             DOUBLE PRECISION,
    duration_ms         BIGINT       NOT NULL,
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS broadcast_journal_signature_idx ON broadcast_journal (signature);
CREATE INDEX IF NOT EXISTS broadcast_journal_wallet_idx ON broadcast_journal (wallet_address);`

var insertRecordQuery = `
INSERT INTO broadcast_journal (operation_id, operation_name, tx_type, chain, network, connector, wallet_address,
                               signature, status, attempts, priority_fee_per_cu, compute_units, error_message,
                               fee_sol, duration_ms, created_at)
VALUES (:operation_id, :operation_name, :tx_type, :chain, :network, :connector, :wallet_address,
        :signature, :status, :attempts, :priority_fee_per_cu, :compute_units, :error_message,
        :fee_sol, :duration_ms, :created_at)
RETURNING id`

var selectColumns = `id, operation_id, operation_name, tx_type, chain, network, connector, wallet_address,
signature, status, attempts, priority_fee_per_cu, compute_units, error_message, fee_sol, duration_ms, created_at`

var getBySignatureQuery = `SELECT ` + selectColumns + ` FROM broadcast_journal WHERE signature = $1 ORDER BY id DESC LIMIT 1`

var listRecentQuery = `SELECT ` + selectColumns + ` FROM broadcast_journal ORDER BY id DESC LIMIT $1`

// Journal stores broadcast outcomes in Postgres.
type Journal struct {
	db     *sqlx.DB
	logger *zap.Logger

	insertRecord   *sqlx.NamedStmt
	getBySignature *sqlx.Stmt
	listRecent     *sqlx.Stmt
}

var _ storage.Journal = (*Journal)(nil)

// NewJournal connects to dsn, creates the schema if needed and prepares statements.
func NewJournal(dsn string, logger *zap.Logger) (*Journal, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	j := &Journal{db: db, logger: logger.Named("journal")}
	if err := j.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if j.insertRecord, err = db.PrepareNamed(insertRecordQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	if j.getBySignature, err = db.Preparex(getBySignatureQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare select: %w", err)
	}
	if j.listRecent, err = db.Preparex(listRecentQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare list: %w", err)
	}
	return j, nil
}

// RunMigrations creates the journal table and indexes.
func (j *Journal) RunMigrations() error {
	if _, err := j.db.Exec(createTableQuery); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (j *Journal) SaveResult(ctx context.Context, rec *models.TransactionRecord) error {
	var id int64
	if err := j.insertRecord.GetContext(ctx, &id, rec); err != nil {
		return fmt.Errorf("failed to save transaction record: %w", err)
	}
	rec.ID = id
	j.logger.Debug("Transaction record saved",
		zap.Int64("id", id),
		zap.String("operation", rec.OperationName),
		zap.String("status", rec.Status))
	return nil
}

func (j *Journal) GetBySignature(ctx context.Context, signature string) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := j.getBySignature.GetContext(ctx, &rec, signature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (j *Journal) ListRecent(ctx context.Context, limit int) ([]*models.TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []*models.TransactionRecord
	if err := j.listRecent.SelectContext(ctx, &recs, limit); err != nil {
		return nil, err
	}
	return recs, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
