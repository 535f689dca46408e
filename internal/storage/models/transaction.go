// internal/storage/models/transaction.go
package models

import (
	"database/sql"
	"time"
)

// Broadcast statuses stored in the journal.
const (
	StatusConfirmed = "confirmed"
	StatusFatal     = "fatal"
	StatusExhausted = "exhausted"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// TransactionRecord is the journal row written once per broadcast.
type TransactionRecord struct {
	ID               int64           `db:"id"`
	OperationID      string          `db:"operation_id"`
	OperationName    string          `db:"operation_name"`
	TxType           string          `db:"tx_type"`
	Chain            string          `db:"chain"`
	Network          string          `db:"network"`
	Connector        string          `db:"connector"`
	WalletAddress    string          `db:"wallet_address"`
	Signature        sql.NullString  `db:"signature"`
	Status           string          `db:"status"`
	Attempts         int             `db:"attempts"`
	PriorityFeePerCU int64           `db:"priority_fee_per_cu"`
	ComputeUnits     int64           `db:"compute_units"`
	ErrorMessage     sql.NullString  `db:"error_message"`
	FeeSOL           sql.NullFloat64 `db:"fee_sol"`
	DurationMs       int64           `db:"duration_ms"`
	CreatedAt        time.Time       `db:"created_at"`
}
