package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

const requestColumns = `r.id, r.item_id, r.requester_id, r.owner_id, r.status, r.hours,
	r.quantity_requested, r.exchange_item_id, r.message, r.created_at, r.responded_at,
	i.name, i.transaction_type, ru.username, ou.username, COALESCE(ei.name, '')`

const requestFrom = ` FROM transaction_requests r
	JOIN items i ON i.id = r.item_id
	JOIN users ru ON ru.id = r.requester_id
	JOIN users ou ON ou.id = r.owner_id
	LEFT JOIN items ei ON ei.id = r.exchange_item_id`

// CreateRequest inserts a request and returns its ID.
func CreateRequest(ctx context.Context, db db.DBTX, r *model.TransactionRequest) (int64, error) {
	status := r.Status
	if status == "" {
		status = model.RequestPending
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO transaction_requests
		    (item_id, requester_id, owner_id, status, hours, quantity_requested, exchange_item_id, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ItemID, r.RequesterID, r.OwnerID, status, r.Hours, r.QuantityRequested, r.ExchangeItemID, r.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting request id: %w", err)
	}
	return id, nil
}

// GetRequest returns a request by ID with item and user names joined in.
func GetRequest(ctx context.Context, db db.DBTX, id int64) (*model.TransactionRequest, error) {
	row := db.QueryRowContext(ctx, `SELECT `+requestColumns+requestFrom+` WHERE r.id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// UpdateRequestFields writes the requester-editable fields of r.
func UpdateRequestFields(ctx context.Context, db db.DBTX, r *model.TransactionRequest) error {
	_, err := db.ExecContext(ctx,
		`UPDATE transaction_requests
		 SET hours = ?, quantity_requested = ?, exchange_item_id = ?, message = ?
		 WHERE id = ?`,
		r.Hours, r.QuantityRequested, r.ExchangeItemID, r.Message, r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating request: %w", err)
	}
	return nil
}

// SetRequestStatus records the owner's decision and when it was made.
func SetRequestStatus(ctx context.Context, db db.DBTX, id int64, status string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE transaction_requests SET status = ?, responded_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("setting request status: %w", err)
	}
	return nil
}

// DeleteRequest removes a request.
func DeleteRequest(ctx context.Context, db db.DBTX, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM transaction_requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	return nil
}

// ListReceivedRequests returns requests against a user's items, newest first.
func ListReceivedRequests(ctx context.Context, db db.DBTX, ownerID int64) ([]model.TransactionRequest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+requestColumns+requestFrom+` WHERE r.owner_id = ? ORDER BY r.created_at DESC, r.id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing received requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// ListSentRequests returns requests a user made, newest first.
func ListSentRequests(ctx context.Context, db db.DBTX, requesterID int64) ([]model.TransactionRequest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+requestColumns+requestFrom+` WHERE r.requester_id = ? ORDER BY r.created_at DESC, r.id DESC`,
		requesterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sent requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// CountPendingReceived returns how many requests await the user's decision.
func CountPendingReceived(ctx context.Context, db db.DBTX, ownerID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transaction_requests WHERE owner_id = ? AND status = 'pending'`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending requests: %w", err)
	}
	return count, nil
}

// CountPendingRequests returns how many requests against the item await a
// decision.
func CountPendingRequests(ctx context.Context, db db.DBTX, itemID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transaction_requests WHERE item_id = ? AND status = 'pending'`,
		itemID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending item requests: %w", err)
	}
	return count, nil
}

// HasAcceptedRequest reports whether the two users completed a transaction
// over the item, in either direction.
func HasAcceptedRequest(ctx context.Context, db db.DBTX, userA, userB, itemID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transaction_requests
		 WHERE item_id = ? AND status = 'accepted'
		   AND ((requester_id = ? AND owner_id = ?) OR (requester_id = ? AND owner_id = ?))`,
		itemID, userA, userB, userB, userA,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking accepted request: %w", err)
	}
	return count > 0, nil
}

func scanRequest(s rowScanner) (*model.TransactionRequest, error) {
	r := &model.TransactionRequest{}
	var hours sql.NullInt64
	var exchangeID sql.NullInt64
	err := s.Scan(&r.ID, &r.ItemID, &r.RequesterID, &r.OwnerID, &r.Status, &hours,
		&r.QuantityRequested, &exchangeID, &r.Message, &r.CreatedAt, &r.RespondedAt,
		&r.ItemName, &r.TransactionType, &r.RequesterName, &r.OwnerName, &r.ExchangeItemName)
	if err != nil {
		return nil, err
	}
	if hours.Valid {
		h := int(hours.Int64)
		r.Hours = &h
	}
	if exchangeID.Valid {
		r.ExchangeItemID = &exchangeID.Int64
	}
	return r, nil
}

func scanRequests(rows *sql.Rows) ([]model.TransactionRequest, error) {
	var requests []model.TransactionRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}
