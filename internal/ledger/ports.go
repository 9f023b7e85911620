package ledger

import (
	"context"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// Tx is the set of reads and writes the ledger performs. Getters return
// (nil, nil) when the row does not exist.
type Tx interface {
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	GetRequest(ctx context.Context, id int64) (*model.TransactionRequest, error)

	CreateRequest(ctx context.Context, r *model.TransactionRequest) (int64, error)
	UpdateRequestFields(ctx context.Context, r *model.TransactionRequest) error
	SetRequestStatus(ctx context.Context, id int64, status string) error
	DeleteRequest(ctx context.Context, id int64) error
	CountPendingRequests(ctx context.Context, itemID int64) (int, error)

	// DecrementAvailable lowers a lend item's available quantity by qty in a
	// single conditional write. It reports false, changing nothing, when
	// fewer than qty units remain.
	DecrementAvailable(ctx context.Context, itemID int64, qty int) (bool, error)
	SetItemStatus(ctx context.Context, itemID int64, status string) error
	// ResetItem sets quantity and available quantity to qty and marks the
	// item available.
	ResetItem(ctx context.Context, itemID int64, qty int) error
	// UpdateItemFields writes the item's editable fields and stock.
	UpdateItemFields(ctx context.Context, it *model.Item) error
}

// Store is the persistence layer behind the ledger.
type Store interface {
	Tx

	// InTx runs fn in one transaction, committing only if fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// UserDirectory answers identity questions about users.
type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// Event types emitted after a committed transition.
const (
	EventRequestSubmitted = "request.submitted"
	EventRequestAccepted  = "request.accepted"
	EventRequestRejected  = "request.rejected"
	EventRequestUpdated   = "request.updated"
	EventRequestCancelled = "request.cancelled"
	EventItemReposted     = "item.reposted"
	EventItemUpdated      = "item.updated"
)

// Event describes a committed ledger transition.
type Event struct {
	Type      string                    `json:"type"`
	ActorID   int64                     `json:"actor_id"`
	Item      model.Item                `json:"item"`
	Request   *model.TransactionRequest `json:"request,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// Notifier receives ledger events. Failures never roll back the transition.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }
