package model

import "time"

// TransactionRequest is one user's request against another user's item.
type TransactionRequest struct {
	ID                int64      `json:"id"`
	ItemID            int64      `json:"item_id"`
	RequesterID       int64      `json:"requester_id"`
	OwnerID           int64      `json:"owner_id"`
	Status            string     `json:"status"`
	Hours             *int       `json:"hours,omitempty"`
	QuantityRequested int        `json:"quantity_requested"`
	ExchangeItemID    *int64     `json:"exchange_item_id,omitempty"`
	Message           string     `json:"message"`
	CreatedAt         time.Time  `json:"created_at"`
	RespondedAt       *time.Time `json:"responded_at,omitempty"`

	// Joined fields (not always populated).
	ItemName         string `json:"item_name,omitempty"`
	TransactionType  string `json:"transaction_type,omitempty"`
	RequesterName    string `json:"requester_name,omitempty"`
	OwnerName        string `json:"owner_name,omitempty"`
	ExchangeItemName string `json:"exchange_item_name,omitempty"`
}

// Request statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
)

// RequestPayload holds the requester-supplied fields of a new request.
type RequestPayload struct {
	Hours             *int   `json:"hours"`
	QuantityRequested *int   `json:"quantity_requested"`
	ExchangeItemID    *int64 `json:"exchange_item_id"`
	Message           string `json:"message"`
}

// RequestPatch is a partial update of a pending request. Nil fields are left
// unchanged.
type RequestPatch struct {
	Hours             *int    `json:"hours"`
	QuantityRequested *int    `json:"quantity_requested"`
	ExchangeItemID    *int64  `json:"exchange_item_id"`
	Message           *string `json:"message"`
}

// Apply copies the set fields of p onto r.
func (p RequestPatch) Apply(r *TransactionRequest) {
	if p.Hours != nil {
		h := *p.Hours
		r.Hours = &h
	}
	if p.QuantityRequested != nil {
		r.QuantityRequested = *p.QuantityRequested
	}
	if p.ExchangeItemID != nil {
		id := *p.ExchangeItemID
		r.ExchangeItemID = &id
	}
	if p.Message != nil {
		r.Message = *p.Message
	}
}
