package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

const itemColumns = `i.id, i.owner_id, i.name, i.description, i.category, i.transaction_type,
	i.price_per_hour, i.quantity, i.available_quantity, i.status, i.created_at,
	u.username, u.address`

const itemFrom = ` FROM items i JOIN users u ON u.id = i.owner_id`

// activeCondition matches items shown when browsing: lend items with stock
// left, other items while available.
const activeCondition = `((i.transaction_type = 'lend' AND i.available_quantity > 0)
	OR (i.transaction_type <> 'lend' AND i.status = 'available'))`

// ItemFilter narrows ListActiveItems. Empty fields match everything.
type ItemFilter struct {
	Category        string
	TransactionType string
	OwnerID         int64
}

// CreateItem lists a new item with all its stock available.
func CreateItem(ctx context.Context, db db.DBTX, it *model.Item) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (owner_id, name, description, category, transaction_type,
		                    price_per_hour, quantity, available_quantity, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.OwnerID, it.Name, it.Description, it.Category, it.TransactionType,
		it.PricePerHour, it.Quantity, it.Quantity, model.ItemStatusAvailable,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID with its owner's name and address.
func GetItem(ctx context.Context, db db.DBTX, id int64) (*model.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+itemFrom+` WHERE i.id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListActiveItems returns browsable items, newest first.
func ListActiveItems(ctx context.Context, db db.DBTX, f ItemFilter) ([]model.Item, error) {
	where := []string{activeCondition}
	var args []any
	if f.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, f.Category)
	}
	if f.TransactionType != "" {
		where = append(where, "i.transaction_type = ?")
		args = append(args, f.TransactionType)
	}
	if f.OwnerID != 0 {
		where = append(where, "i.owner_id = ?")
		args = append(args, f.OwnerID)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemFrom+
			` WHERE `+strings.Join(where, " AND ")+
			` ORDER BY i.created_at DESC, i.id DESC`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListItemsByOwner returns every item a user listed, whatever its state.
func ListItemsByOwner(ctx context.Context, db db.DBTX, ownerID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.owner_id = ? ORDER BY i.created_at DESC, i.id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items by owner: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// DecrementAvailable lowers a lend item's available quantity by qty. The
// check and the write are one statement, so it reports false and changes
// nothing when fewer than qty units remain.
func DecrementAvailable(ctx context.Context, db db.DBTX, itemID int64, qty int) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET available_quantity = available_quantity - ?
		 WHERE id = ? AND transaction_type = 'lend' AND available_quantity >= ?`,
		qty, itemID, qty,
	)
	if err != nil {
		return false, fmt.Errorf("decrementing available quantity: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking decrement: %w", err)
	}
	return n == 1, nil
}

// SetItemStatus sets an item's status.
func SetItemStatus(ctx context.Context, db db.DBTX, itemID int64, status string) error {
	_, err := db.ExecContext(ctx, `UPDATE items SET status = ? WHERE id = ?`, status, itemID)
	if err != nil {
		return fmt.Errorf("setting item status: %w", err)
	}
	return nil
}

// ResetItem restocks an item to qty units and marks it available.
func ResetItem(ctx context.Context, db db.DBTX, itemID int64, qty int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET quantity = ?, available_quantity = ?, status = ? WHERE id = ?`,
		qty, qty, model.ItemStatusAvailable, itemID,
	)
	if err != nil {
		return fmt.Errorf("resetting item: %w", err)
	}
	return nil
}

// UpdateItemFields writes an item's editable fields and stock back.
func UpdateItemFields(ctx context.Context, db db.DBTX, it *model.Item) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category = ?, transaction_type = ?,
		                  price_per_hour = ?, quantity = ?, available_quantity = ?, status = ?
		 WHERE id = ?`,
		it.Name, it.Description, it.Category, it.TransactionType,
		it.PricePerHour, it.Quantity, it.AvailableQuantity, it.Status, it.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description sql.NullString
	var price sql.NullFloat64
	err := s.Scan(&item.ID, &item.OwnerID, &item.Name, &description, &item.Category, &item.TransactionType,
		&price, &item.Quantity, &item.AvailableQuantity, &item.Status, &item.CreatedAt,
		&item.OwnerName, &item.Address)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	if price.Valid {
		item.PricePerHour = &price.Float64
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
