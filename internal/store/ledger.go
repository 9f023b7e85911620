package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/ledger"
	"github.com/erazemk/izposoja/internal/model"
)

// Ledger backs the request ledger with the SQLite store.
type Ledger struct {
	queries
	db *sql.DB
}

// NewLedger returns a ledger store over database.
func NewLedger(database *sql.DB) *Ledger {
	return &Ledger{queries: queries{database}, db: database}
}

// InTx runs fn in a database transaction. The connection pool holds a single
// connection, so fn must only use the Tx it is given.
func (l *Ledger) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(queries{tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UserExists reports whether the user exists.
func (l *Ledger) UserExists(ctx context.Context, id int64) (bool, error) {
	return UserExists(ctx, l.db, id)
}

// queries binds the store functions to a connection or transaction.
type queries struct {
	q db.DBTX
}

func (s queries) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	return GetItem(ctx, s.q, id)
}

func (s queries) GetRequest(ctx context.Context, id int64) (*model.TransactionRequest, error) {
	return GetRequest(ctx, s.q, id)
}

func (s queries) CreateRequest(ctx context.Context, r *model.TransactionRequest) (int64, error) {
	return CreateRequest(ctx, s.q, r)
}

func (s queries) UpdateRequestFields(ctx context.Context, r *model.TransactionRequest) error {
	return UpdateRequestFields(ctx, s.q, r)
}

func (s queries) SetRequestStatus(ctx context.Context, id int64, status string) error {
	return SetRequestStatus(ctx, s.q, id, status)
}

func (s queries) DeleteRequest(ctx context.Context, id int64) error {
	return DeleteRequest(ctx, s.q, id)
}

func (s queries) DecrementAvailable(ctx context.Context, itemID int64, qty int) (bool, error) {
	return DecrementAvailable(ctx, s.q, itemID, qty)
}

func (s queries) SetItemStatus(ctx context.Context, itemID int64, status string) error {
	return SetItemStatus(ctx, s.q, itemID, status)
}

func (s queries) ResetItem(ctx context.Context, itemID int64, qty int) error {
	return ResetItem(ctx, s.q, itemID, qty)
}

func (s queries) UpdateItemFields(ctx context.Context, it *model.Item) error {
	return UpdateItemFields(ctx, s.q, it)
}

func (s queries) CountPendingRequests(ctx context.Context, itemID int64) (int, error) {
	return CountPendingRequests(ctx, s.q, itemID)
}
