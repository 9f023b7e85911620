package model

import "time"

// Item represents a listed vehicle. Lend items carry countable stock, give-away
// and exchange items are single-instance and complete on acceptance.
type Item struct {
	ID                int64     `json:"id"`
	OwnerID           int64     `json:"user_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Category          string    `json:"category"`
	TransactionType   string    `json:"transaction_type"`
	PricePerHour      *float64  `json:"price_per_hour,omitempty"`
	Quantity          int       `json:"quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`

	// Joined fields (not always populated).
	OwnerName string `json:"username,omitempty"`
	Address   string `json:"address,omitempty"`
}

// Item categories.
const (
	CategoryCar       = "car"
	CategoryMotorbike = "motorbike"
)

// Transaction types.
const (
	TransactionLend     = "lend"
	TransactionGiveAway = "give_away"
	TransactionExchange = "exchange"
)

// Item statuses.
const (
	ItemStatusAvailable   = "available"
	ItemStatusUnavailable = "unavailable"
	ItemStatusCompleted   = "completed"
)

// ValidCategory reports whether c is a known item category.
func ValidCategory(c string) bool {
	return c == CategoryCar || c == CategoryMotorbike
}

// ValidTransactionType reports whether t is a known transaction type.
func ValidTransactionType(t string) bool {
	switch t {
	case TransactionLend, TransactionGiveAway, TransactionExchange:
		return true
	}
	return false
}

// Active reports whether the item is visible when browsing. Lend items are
// active while stock remains; the others while their status is available.
func (i *Item) Active() bool {
	if i.TransactionType == TransactionLend {
		return i.AvailableQuantity > 0
	}
	return i.Status == ItemStatusAvailable
}

// ItemPatch is an owner's partial edit of a listing. Nil fields are left
// unchanged.
type ItemPatch struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Category        *string  `json:"category"`
	TransactionType *string  `json:"transaction_type"`
	PricePerHour    *float64 `json:"price_per_hour"`
}

// Apply copies the set fields of p onto i. Switching to a single-instance
// type collapses stock to one unit; switching a single item to lend keeps one
// unit, available only if the item was.
func (p ItemPatch) Apply(i *Item) {
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	if p.Category != nil {
		i.Category = *p.Category
	}
	if p.PricePerHour != nil {
		price := *p.PricePerHour
		i.PricePerHour = &price
	}

	if p.TransactionType == nil || *p.TransactionType == i.TransactionType {
		return
	}
	wasLend := i.TransactionType == TransactionLend
	i.TransactionType = *p.TransactionType

	switch {
	case wasLend:
		i.Quantity = 1
		i.AvailableQuantity = min(i.AvailableQuantity, 1)
		if i.AvailableQuantity == 0 {
			i.Status = ItemStatusUnavailable
		}
	case i.TransactionType == TransactionLend:
		i.Quantity = 1
		i.AvailableQuantity = 0
		if i.Status == ItemStatusAvailable {
			i.AvailableQuantity = 1
		}
	}
}
