// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rovshanmuradov/gateway-broadcaster/internal/storage/models"
)

var ErrNotFound = errors.New("transaction record not found")

// Journal persists the outcome of each broadcast.
type Journal interface {
	SaveResult(ctx context.Context, rec *models.TransactionRecord) error
	GetBySignature(ctx context.Context, signature string) (*models.TransactionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.TransactionRecord, error)
	Close() error
}

// MemoryJournal keeps records in process. It is used when no database is configured.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []*models.TransactionRecord
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) SaveResult(ctx context.Context, rec *models.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	cp := *rec
	cp.ID = int64(len(j.records) + 1)
	j.records = append(j.records, &cp)
	rec.ID = cp.ID
	return nil
}

func (j *MemoryJournal) GetBySignature(ctx context.Context, signature string) (*models.TransactionRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for i := len(j.records) - 1; i >= 0; i-- {
		if rec := j.records[i]; rec.Signature.Valid && rec.Signature.String == signature {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListRecent returns up to limit records, newest first.
func (j *MemoryJournal) ListRecent(ctx context.Context, limit int) ([]*models.TransactionRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*models.TransactionRecord, 0, len(j.records))
	for _, rec := range j.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (j *MemoryJournal) Close() error {
	return nil
}
