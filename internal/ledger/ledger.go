// Package ledger owns transaction-request state transitions and their effect
// on item inventory.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/izposoja/internal/model"
)

// Ledger enacts request transitions. Every operation that reads and then
// writes an item's inventory holds that item's lock for the whole
// read-validate-write sequence; different items proceed in parallel. The lock
// is released before the notifier runs.
type Ledger struct {
	store    Store
	users    UserDirectory
	notifier Notifier
	locks    *itemLocks
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a ledger. A nil notifier discards events.
func New(store Store, users UserDirectory, notifier Notifier) *Ledger {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Ledger{
		store:    store,
		users:    users,
		notifier: notifier,
		locks:    newItemLocks(),
		tracer:   otel.Tracer("github.com/erazemk/izposoja/internal/ledger"),
		now:      time.Now,
	}
}

// SubmitRequest creates a pending request by requesterID against itemID.
// Inventory is only checked here, never reserved.
func (l *Ledger) SubmitRequest(ctx context.Context, itemID, requesterID int64, p model.RequestPayload) (_ *model.TransactionRequest, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.submit_request", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
		attribute.Int64("requester.id", requesterID),
	))
	defer func() { endSpan(span, err) }()

	qty := 1
	if p.QuantityRequested != nil {
		qty = *p.QuantityRequested
	}
	if qty < 1 {
		return nil, newError(KindValidation, "quantity_requested must be at least 1")
	}
	if p.Hours != nil && *p.Hours < 0 {
		return nil, newError(KindValidation, "hours cannot be negative")
	}

	exists, err := l.users.UserExists(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("checking requester: %w", err)
	}
	if !exists {
		return nil, newError(KindNotFound, "user not found")
	}

	unlock := l.locks.lock(itemID)

	var created *model.TransactionRequest
	var item *model.Item
	err = l.store.InTx(ctx, func(tx Tx) error {
		item, err = tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return newError(KindNotFound, "item not found")
		}

		if item.OwnerID == requesterID {
			return newError(KindValidation, "cannot request your own item")
		}

		if item.TransactionType == model.TransactionLend && qty > item.AvailableQuantity {
			return newError(KindInsufficientInventory, "only %d items available", item.AvailableQuantity)
		}

		if p.ExchangeItemID != nil {
			if err := checkExchangeItem(ctx, tx, itemID, requesterID, *p.ExchangeItemID); err != nil {
				return err
			}
		}

		r := &model.TransactionRequest{
			ItemID:            itemID,
			RequesterID:       requesterID,
			OwnerID:           item.OwnerID,
			Status:            model.RequestPending,
			Hours:             p.Hours,
			QuantityRequested: qty,
			ExchangeItemID:    p.ExchangeItemID,
			Message:           p.Message,
		}
		id, err := tx.CreateRequest(ctx, r)
		if err != nil {
			return err
		}

		created, err = tx.GetRequest(ctx, id)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("request.id", created.ID))
	l.notify(ctx, EventRequestSubmitted, requesterID, item, created)
	return created, nil
}

// Respond applies the owner's decision to a pending request. Accepting a lend
// request decrements the item's available quantity; accepting a give-away or
// exchange request completes the item and the offered exchange item. All
// writes of one call commit together or not at all.
func (l *Ledger) Respond(ctx context.Context, requestID, ownerID int64, decision string) (_ *model.TransactionRequest, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.respond", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
		attribute.String("decision", decision),
	))
	defer func() { endSpan(span, err) }()

	req, err := l.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	if req == nil {
		return nil, newError(KindNotFound, "request not found")
	}
	if req.OwnerID != ownerID {
		return nil, newError(KindAuthorization, "only the item owner can respond to this request")
	}
	if decision != model.RequestAccepted && decision != model.RequestRejected {
		return nil, newError(KindValidation, "status must be %q or %q", model.RequestAccepted, model.RequestRejected)
	}

	unlock := l.locks.lock(req.ItemID)

	var updated *model.TransactionRequest
	var item *model.Item
	err = l.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if cur == nil {
			return newError(KindNotFound, "request not found")
		}
		if cur.Status != model.RequestPending {
			return newError(KindInvalidState, "request is already %s", cur.Status)
		}

		if decision == model.RequestAccepted {
			if err := l.accept(ctx, tx, cur); err != nil {
				return err
			}
		}

		if err := tx.SetRequestStatus(ctx, requestID, decision); err != nil {
			return err
		}

		if updated, err = tx.GetRequest(ctx, requestID); err != nil {
			return err
		}
		item, err = tx.GetItem(ctx, cur.ItemID)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	eventType := EventRequestRejected
	if decision == model.RequestAccepted {
		eventType = EventRequestAccepted
	}
	l.notify(ctx, eventType, ownerID, item, updated)
	return updated, nil
}

// accept applies the inventory side of an acceptance inside tx.
func (l *Ledger) accept(ctx context.Context, tx Tx, r *model.TransactionRequest) error {
	item, err := tx.GetItem(ctx, r.ItemID)
	if err != nil {
		return err
	}
	if item == nil {
		return newError(KindNotFound, "item not found")
	}

	switch item.TransactionType {
	case model.TransactionLend:
		ok, err := tx.DecrementAvailable(ctx, item.ID, r.QuantityRequested)
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindInsufficientInventory, "not enough quantity available")
		}

	case model.TransactionGiveAway, model.TransactionExchange:
		// A completed item can be completed again: accepting a second
		// request is allowed.
		if err := tx.SetItemStatus(ctx, item.ID, model.ItemStatusCompleted); err != nil {
			return err
		}
		if r.ExchangeItemID != nil {
			exchange, err := tx.GetItem(ctx, *r.ExchangeItemID)
			if err != nil {
				return err
			}
			if exchange == nil {
				slog.Warn("exchange item missing on acceptance", "request", r.ID, "exchange_item", *r.ExchangeItemID)
				return nil
			}
			if err := tx.SetItemStatus(ctx, exchange.ID, model.ItemStatusCompleted); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("item %d has unknown transaction type %q", item.ID, item.TransactionType)
	}

	return nil
}

// EditRequest applies patch to a pending request owned by requesterID.
// Inventory is not re-validated; an oversized edit fails at acceptance.
func (l *Ledger) EditRequest(ctx context.Context, requestID, requesterID int64, patch model.RequestPatch) (_ *model.TransactionRequest, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.edit_request", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
	))
	defer func() { endSpan(span, err) }()

	if patch.QuantityRequested != nil && *patch.QuantityRequested < 1 {
		return nil, newError(KindValidation, "quantity_requested must be at least 1")
	}
	if patch.Hours != nil && *patch.Hours < 0 {
		return nil, newError(KindValidation, "hours cannot be negative")
	}

	req, err := l.requesterGuard(ctx, requestID, requesterID)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.lock(req.ItemID)

	var updated *model.TransactionRequest
	var item *model.Item
	err = l.store.InTx(ctx, func(tx Tx) error {
		cur, err := pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if patch.ExchangeItemID != nil {
			if err := checkExchangeItem(ctx, tx, cur.ItemID, requesterID, *patch.ExchangeItemID); err != nil {
				return err
			}
		}

		patch.Apply(cur)
		if err := tx.UpdateRequestFields(ctx, cur); err != nil {
			return err
		}

		if updated, err = tx.GetRequest(ctx, requestID); err != nil {
			return err
		}
		item, err = tx.GetItem(ctx, cur.ItemID)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	l.notify(ctx, EventRequestUpdated, requesterID, item, updated)
	return updated, nil
}

// CancelRequest deletes a pending request owned by requesterID.
func (l *Ledger) CancelRequest(ctx context.Context, requestID, requesterID int64) (err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.cancel_request", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
	))
	defer func() { endSpan(span, err) }()

	req, err := l.requesterGuard(ctx, requestID, requesterID)
	if err != nil {
		return err
	}

	unlock := l.locks.lock(req.ItemID)

	var deleted *model.TransactionRequest
	var item *model.Item
	err = l.store.InTx(ctx, func(tx Tx) error {
		cur, err := pendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		deleted = cur

		if item, err = tx.GetItem(ctx, cur.ItemID); err != nil {
			return err
		}
		return tx.DeleteRequest(ctx, requestID)
	})
	unlock()
	if err != nil {
		return err
	}

	l.notify(ctx, EventRequestCancelled, requesterID, item, deleted)
	return nil
}

// Repost revives an item with fresh stock: quantity and available quantity
// both become newQuantity (the current quantity when nil) and the status
// becomes available, whatever the item's prior state.
func (l *Ledger) Repost(ctx context.Context, itemID, ownerID int64, newQuantity *int) (_ *model.Item, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.repost", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
	))
	defer func() { endSpan(span, err) }()

	unlock := l.locks.lock(itemID)

	var item *model.Item
	err = l.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if cur == nil {
			return newError(KindNotFound, "item not found")
		}
		if cur.OwnerID != ownerID {
			return newError(KindAuthorization, "only the owner can repost this item")
		}

		qty := cur.Quantity
		if newQuantity != nil {
			qty = *newQuantity
		}
		if qty < 0 {
			return newError(KindValidation, "quantity cannot be negative")
		}

		if err := tx.ResetItem(ctx, itemID, qty); err != nil {
			return err
		}
		item, err = tx.GetItem(ctx, itemID)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	l.notify(ctx, EventItemReposted, ownerID, item, nil)
	return item, nil
}

// EditItem applies the owner's patch to an item. A transaction type change
// reshapes stock (see model.ItemPatch) and is refused while requests against
// the item are pending, since their terms were made for the old type.
func (l *Ledger) EditItem(ctx context.Context, itemID, ownerID int64, patch model.ItemPatch) (_ *model.Item, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.edit_item", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
	))
	defer func() { endSpan(span, err) }()

	if err := validateItemPatch(patch); err != nil {
		return nil, err
	}

	unlock := l.locks.lock(itemID)
	var item *model.Item
	err = l.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if cur == nil {
			return newError(KindNotFound, "item not found")
		}
		if cur.OwnerID != ownerID {
			return newError(KindAuthorization, "only the owner can edit this item")
		}

		if patch.TransactionType != nil && *patch.TransactionType != cur.TransactionType {
			pending, err := tx.CountPendingRequests(ctx, itemID)
			if err != nil {
				return err
			}
			if pending > 0 {
				return newError(KindInvalidState, "cannot change the transaction type while %d requests are pending", pending)
			}
		}

		patch.Apply(cur)
		if err := tx.UpdateItemFields(ctx, cur); err != nil {
			return err
		}
		item, err = tx.GetItem(ctx, itemID)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	l.notify(ctx, EventItemUpdated, ownerID, item, nil)
	return item, nil
}

func validateItemPatch(p model.ItemPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return newError(KindValidation, "name cannot be empty")
	}
	if p.Category != nil && !model.ValidCategory(*p.Category) {
		return newError(KindValidation, "category must be car or motorbike")
	}
	if p.TransactionType != nil && !model.ValidTransactionType(*p.TransactionType) {
		return newError(KindValidation, "transaction_type must be lend, give_away or exchange")
	}
	if p.PricePerHour != nil && *p.PricePerHour < 0 {
		return newError(KindValidation, "price_per_hour cannot be negative")
	}
	return nil
}

// requesterGuard fetches a request and checks that requesterID made it.
func (l *Ledger) requesterGuard(ctx context.Context, requestID, requesterID int64) (*model.TransactionRequest, error) {
	req, err := l.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	if req == nil {
		return nil, newError(KindNotFound, "request not found")
	}
	if req.RequesterID != requesterID {
		return nil, newError(KindAuthorization, "only the requester can change this request")
	}
	return req, nil
}

// pendingRequest re-reads a request inside tx and requires it to be pending.
func pendingRequest(ctx context.Context, tx Tx, requestID int64) (*model.TransactionRequest, error) {
	cur, err := tx.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, newError(KindNotFound, "request not found")
	}
	if cur.Status != model.RequestPending {
		return nil, newError(KindInvalidState, "cannot change a %s request", cur.Status)
	}
	return cur, nil
}

// checkExchangeItem requires the offered item to exist and differ from the
// requested one. Ownership is only logged.
func checkExchangeItem(ctx context.Context, tx Tx, itemID, requesterID, exchangeItemID int64) error {
	if exchangeItemID == itemID {
		return newError(KindValidation, "exchange item must differ from the requested item")
	}
	exchange, err := tx.GetItem(ctx, exchangeItemID)
	if err != nil {
		return err
	}
	if exchange == nil {
		return newError(KindNotFound, "exchange item not found")
	}
	if exchange.OwnerID != requesterID {
		slog.Warn("exchange item not owned by requester",
			"item", itemID, "exchange_item", exchangeItemID,
			"requester", requesterID, "exchange_owner", exchange.OwnerID)
	}
	return nil
}

func (l *Ledger) notify(ctx context.Context, eventType string, actorID int64, item *model.Item, r *model.TransactionRequest) {
	e := Event{
		Type:      eventType,
		ActorID:   actorID,
		Request:   r,
		Timestamp: l.now(),
	}
	if item != nil {
		e.Item = *item
	}

	// The transition is committed; a cancelled caller must not stop delivery.
	if err := l.notifier.Notify(context.WithoutCancel(ctx), e); err != nil {
		slog.Error("failed to deliver ledger event", "event", eventType, "item", e.Item.ID, "error", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
