// Package notify delivers ledger events to users and other systems.
package notify

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/ledger"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Conversations posts a system message into the conversation between the
// item owner and the requester for every request event.
type Conversations struct {
	db *sql.DB
}

// NewConversations returns a notifier writing to database.
func NewConversations(database *sql.DB) *Conversations {
	return &Conversations{db: database}
}

// Notify implements ledger.Notifier. Events without a request are skipped.
func (c *Conversations) Notify(ctx context.Context, e ledger.Event) error {
	if e.Request == nil {
		return nil
	}
	r := e.Request
	return c.Post(ctx, r.OwnerID, r.RequesterID, &r.ItemID, e.ActorID, describe(e))
}

// Post writes a system message from senderID into the conversation between
// userA and userB about itemID, creating the conversation if needed.
func (c *Conversations) Post(ctx context.Context, userA, userB int64, itemID *int64, senderID int64, content string) error {
	conv, err := store.FindOrCreateConversation(ctx, c.db, userA, userB, itemID)
	if err != nil {
		return err
	}
	if _, err := store.CreateMessage(ctx, c.db, conv.ID, senderID, model.MessageSystem, content); err != nil {
		return err
	}
	return nil
}

func describe(e ledger.Event) string {
	r := e.Request
	name := e.Item.Name
	if name == "" {
		name = r.ItemName
	}

	switch e.Type {
	case ledger.EventRequestSubmitted:
		return fmt.Sprintf("%s requested %s (%s)", r.RequesterName, name, requestTerms(e))
	case ledger.EventRequestAccepted:
		return fmt.Sprintf("%s accepted the request for %s", r.OwnerName, name)
	case ledger.EventRequestRejected:
		return fmt.Sprintf("%s rejected the request for %s", r.OwnerName, name)
	case ledger.EventRequestUpdated:
		return fmt.Sprintf("%s updated the request for %s (%s)", r.RequesterName, name, requestTerms(e))
	case ledger.EventRequestCancelled:
		return fmt.Sprintf("%s cancelled the request for %s", r.RequesterName, name)
	}
	return fmt.Sprintf("%s: %s", e.Type, name)
}

func requestTerms(e ledger.Event) string {
	r := e.Request
	switch e.Item.TransactionType {
	case model.TransactionLend:
		if r.Hours != nil {
			return fmt.Sprintf("%d for %d h", r.QuantityRequested, *r.Hours)
		}
		return fmt.Sprintf("quantity %d", r.QuantityRequested)
	case model.TransactionExchange:
		if r.ExchangeItemName != "" {
			return "offering " + r.ExchangeItemName
		}
		return "exchange"
	}
	return "give away"
}
