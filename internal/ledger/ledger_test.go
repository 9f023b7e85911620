package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/model"
)

const (
	owner     int64 = 1001
	requester int64 = 1002
	other     int64 = 1003
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func setup(t *testing.T) (*Ledger, *memStore, *recordingNotifier) {
	t.Helper()
	s := newMemStore()
	s.addUser(owner)
	s.addUser(requester)
	s.addUser(other)
	n := &recordingNotifier{}
	return New(s, s, n), s, n
}

func lendItem(s *memStore, qty int) int64 {
	return s.addItem(model.Item{
		OwnerID:           owner,
		Name:              "Bike",
		Category:          model.CategoryMotorbike,
		TransactionType:   model.TransactionLend,
		Quantity:          qty,
		AvailableQuantity: qty,
	})
}

func singleItem(s *memStore, ownerID int64, txType string) int64 {
	return s.addItem(model.Item{
		OwnerID:           ownerID,
		Name:              "Car",
		Category:          model.CategoryCar,
		TransactionType:   txType,
		Quantity:          1,
		AvailableQuantity: 1,
	})
}

func TestSubmitRequestDefaults(t *testing.T) {
	l, s, n := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{Message: "please"})
	require.NoError(t, err)

	assert.Equal(t, model.RequestPending, r.Status)
	assert.Equal(t, 1, r.QuantityRequested)
	assert.Equal(t, owner, r.OwnerID)
	assert.Equal(t, "please", r.Message)

	// Submitting never reserves stock.
	assert.Equal(t, 3, s.item(itemID).AvailableQuantity)
	assert.Equal(t, []string{EventRequestSubmitted}, n.types())
}

func TestSubmitRequestRejectsOwnItem(t *testing.T) {
	l, s, _ := setup(t)
	itemID := lendItem(s, 3)

	_, err := l.SubmitRequest(context.Background(), itemID, owner, model.RequestPayload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "cannot request your own item", err.Error())
}

func TestSubmitRequestValidation(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	tests := []struct {
		name    string
		itemID  int64
		userID  int64
		payload model.RequestPayload
		want    error
	}{
		{"zero quantity", itemID, requester, model.RequestPayload{QuantityRequested: intPtr(0)}, ErrValidation},
		{"negative hours", itemID, requester, model.RequestPayload{Hours: intPtr(-1)}, ErrValidation},
		{"unknown requester", itemID, 9999, model.RequestPayload{}, ErrNotFound},
		{"unknown item", 9999, requester, model.RequestPayload{}, ErrNotFound},
		{"too many", itemID, requester, model.RequestPayload{QuantityRequested: intPtr(4)}, ErrInsufficientInventory},
		{"exchange same item", itemID, requester, model.RequestPayload{ExchangeItemID: int64Ptr(itemID)}, ErrValidation},
		{"exchange missing", itemID, requester, model.RequestPayload{ExchangeItemID: int64Ptr(9999)}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.SubmitRequest(ctx, tt.itemID, tt.userID, tt.payload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitRequestInsufficientMessage(t *testing.T) {
	l, s, _ := setup(t)
	itemID := lendItem(s, 2)

	_, err := l.SubmitRequest(context.Background(), itemID, requester, model.RequestPayload{QuantityRequested: intPtr(5)})
	require.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, "only 2 items available", err.Error())
}

func TestSubmitRequestIgnoresQuantityForSingleItems(t *testing.T) {
	l, s, _ := setup(t)
	itemID := singleItem(s, owner, model.TransactionGiveAway)

	r, err := l.SubmitRequest(context.Background(), itemID, requester, model.RequestPayload{QuantityRequested: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, r.QuantityRequested)
}

func TestLendAcceptanceDrainsStock(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	a, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{QuantityRequested: intPtr(2)})
	require.NoError(t, err)
	b, err := l.SubmitRequest(ctx, itemID, other, model.RequestPayload{QuantityRequested: intPtr(2)})
	require.NoError(t, err)

	got, err := l.Respond(ctx, a.ID, owner, model.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, got.Status)
	assert.NotNil(t, got.RespondedAt)
	assert.Equal(t, 1, s.item(itemID).AvailableQuantity)

	_, err = l.Respond(ctx, b.ID, owner, model.RequestAccepted)
	require.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, "not enough quantity available", err.Error())

	rb, _ := s.request(b.ID)
	assert.Equal(t, model.RequestPending, rb.Status)
	assert.Equal(t, 1, s.item(itemID).AvailableQuantity)
}

func TestRespondReject(t *testing.T) {
	l, s, n := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{QuantityRequested: intPtr(2)})
	require.NoError(t, err)

	got, err := l.Respond(ctx, r.ID, owner, model.RequestRejected)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, got.Status)
	assert.Equal(t, 3, s.item(itemID).AvailableQuantity)
	assert.Equal(t, []string{EventRequestSubmitted, EventRequestRejected}, n.types())
}

func TestRespondChecks(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)

	_, err = l.Respond(ctx, 9999, owner, model.RequestAccepted)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Respond(ctx, r.ID, requester, model.RequestAccepted)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = l.Respond(ctx, r.ID, owner, "maybe")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	require.NoError(t, err)

	// A decided request is never decided again.
	_, err = l.Respond(ctx, r.ID, owner, model.RequestRejected)
	assert.ErrorIs(t, err, ErrInvalidState)
	got, _ := s.request(r.ID)
	assert.Equal(t, model.RequestAccepted, got.Status)
}

func TestGiveAwayAcceptanceCompletesItem(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := singleItem(s, owner, model.TransactionGiveAway)

	a, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)
	b, err := l.SubmitRequest(ctx, itemID, other, model.RequestPayload{})
	require.NoError(t, err)

	_, err = l.Respond(ctx, a.ID, owner, model.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusCompleted, s.item(itemID).Status)
	assert.Equal(t, 1, s.item(itemID).AvailableQuantity)

	// Accepting a second request on a completed item is allowed.
	_, err = l.Respond(ctx, b.ID, owner, model.RequestAccepted)
	require.NoError(t, err)
	rb, _ := s.request(b.ID)
	assert.Equal(t, model.RequestAccepted, rb.Status)
	assert.Equal(t, model.ItemStatusCompleted, s.item(itemID).Status)
}

func TestExchangeAcceptanceCompletesBothItems(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := singleItem(s, owner, model.TransactionExchange)
	offered := singleItem(s, requester, model.TransactionExchange)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{ExchangeItemID: int64Ptr(offered)})
	require.NoError(t, err)

	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusCompleted, s.item(itemID).Status)
	assert.Equal(t, model.ItemStatusCompleted, s.item(offered).Status)
}

func TestExchangeItemNotOwnedIsAccepted(t *testing.T) {
	l, s, _ := setup(t)
	itemID := singleItem(s, owner, model.TransactionExchange)
	foreign := singleItem(s, other, model.TransactionExchange)

	_, err := l.SubmitRequest(context.Background(), itemID, requester, model.RequestPayload{ExchangeItemID: int64Ptr(foreign)})
	assert.NoError(t, err)
}

func TestRespondRollsBackOnFailure(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{QuantityRequested: intPtr(2)})
	require.NoError(t, err)

	s.setFailOn("SetRequestStatus")
	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	require.ErrorIs(t, err, errInjected)
	_, ok := KindOf(err)
	assert.False(t, ok)

	// The decrement did not survive the failed status write.
	assert.Equal(t, 3, s.item(itemID).AvailableQuantity)
	got, _ := s.request(r.ID)
	assert.Equal(t, model.RequestPending, got.Status)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	s := newMemStore()
	s.addUser(owner)
	s.addUser(requester)
	n := &recordingNotifier{err: errors.New("broker down")}
	l := New(s, s, n)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{QuantityRequested: intPtr(2)})
	require.NoError(t, err)
	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	require.NoError(t, err)

	assert.Equal(t, 1, s.item(itemID).AvailableQuantity)
	assert.Len(t, n.types(), 2)
}

func TestNotifierSurvivesCancelledContext(t *testing.T) {
	l, s, n := setup(t)
	itemID := lendItem(s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)
	cancel()

	require.Len(t, n.events, 1)
	assert.Equal(t, r.ID, n.events[0].Request.ID)
	assert.Equal(t, itemID, n.events[0].Item.ID)
}

func TestSlowNotifierDoesNotHoldItemLock(t *testing.T) {
	s := newMemStore()
	s.addUser(owner)
	s.addUser(requester)
	s.addUser(other)
	n := newBlockingNotifier()
	l := New(s, s, n)
	itemID := lendItem(s, 3)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
		first <- err
	}()

	select {
	case <-n.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("notifier was never called")
	}
	assert.Equal(t, 0, l.locks.len(), "item lock held during notification")

	second := make(chan error, 1)
	go func() {
		r, err := l.SubmitRequest(ctx, itemID, other, model.RequestPayload{})
		if err == nil {
			_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
		}
		second <- err
	}()

	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("operations on the item blocked behind a slow notifier")
	}
	assert.Equal(t, 2, s.item(itemID).AvailableQuantity)

	close(n.release)
	require.NoError(t, <-first)
}

func TestEditRequest(t *testing.T) {
	l, s, n := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 2)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{Hours: intPtr(2), Message: "first"})
	require.NoError(t, err)

	// Edits are not checked against stock.
	got, err := l.EditRequest(ctx, r.ID, requester, model.RequestPatch{QuantityRequested: intPtr(5), Message: strPtr("second")})
	require.NoError(t, err)
	assert.Equal(t, 5, got.QuantityRequested)
	assert.Equal(t, "second", got.Message)
	require.NotNil(t, got.Hours)
	assert.Equal(t, 2, *got.Hours)
	assert.Contains(t, n.types(), EventRequestUpdated)

	// The oversized request fails at acceptance instead.
	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	assert.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestEditRequestChecks(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)

	_, err = l.EditRequest(ctx, r.ID, other, model.RequestPatch{Message: strPtr("x")})
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = l.EditRequest(ctx, r.ID, requester, model.RequestPatch{QuantityRequested: intPtr(0)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = l.EditRequest(ctx, r.ID, requester, model.RequestPatch{ExchangeItemID: int64Ptr(itemID)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = l.EditRequest(ctx, 9999, requester, model.RequestPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Respond(ctx, r.ID, owner, model.RequestRejected)
	require.NoError(t, err)

	_, err = l.EditRequest(ctx, r.ID, requester, model.RequestPatch{Message: strPtr("late")})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelRequest(t *testing.T) {
	l, s, n := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)

	assert.ErrorIs(t, l.CancelRequest(ctx, r.ID, other), ErrAuthorization)
	require.NoError(t, l.CancelRequest(ctx, r.ID, requester))

	_, ok := s.request(r.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, l.CancelRequest(ctx, r.ID, requester), ErrNotFound)
	assert.Contains(t, n.types(), EventRequestCancelled)
}

func TestCancelDecidedRequest(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)
	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	require.NoError(t, err)

	assert.ErrorIs(t, l.CancelRequest(ctx, r.ID, requester), ErrInvalidState)
	_, ok := s.request(r.ID)
	assert.True(t, ok)
}

func TestRepostCompletedItem(t *testing.T) {
	l, s, n := setup(t)
	ctx := context.Background()
	itemID := singleItem(s, owner, model.TransactionGiveAway)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)
	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	require.NoError(t, err)
	require.Equal(t, model.ItemStatusCompleted, s.item(itemID).Status)

	it, err := l.Repost(ctx, itemID, owner, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusAvailable, it.Status)
	assert.Equal(t, 1, it.Quantity)
	assert.Equal(t, 1, it.AvailableQuantity)
	assert.Contains(t, n.types(), EventItemReposted)
}

func TestRepostResetsLendStock(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{QuantityRequested: intPtr(3)})
	require.NoError(t, err)
	_, err = l.Respond(ctx, r.ID, owner, model.RequestAccepted)
	require.NoError(t, err)
	require.Equal(t, 0, s.item(itemID).AvailableQuantity)

	it, err := l.Repost(ctx, itemID, owner, intPtr(5))
	require.NoError(t, err)
	assert.Equal(t, 5, it.Quantity)
	assert.Equal(t, 5, it.AvailableQuantity)
}

func TestEditItem(t *testing.T) {
	l, s, n := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	price := 12.5
	it, err := l.EditItem(ctx, itemID, owner, model.ItemPatch{Name: strPtr("Honda"), PricePerHour: &price})
	require.NoError(t, err)
	assert.Equal(t, "Honda", it.Name)
	require.NotNil(t, it.PricePerHour)
	assert.Equal(t, 12.5, *it.PricePerHour)
	assert.Equal(t, 3, it.AvailableQuantity)
	assert.Equal(t, []string{EventItemUpdated}, n.types())

	it, err = l.EditItem(ctx, itemID, owner, model.ItemPatch{TransactionType: strPtr(model.TransactionGiveAway)})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionGiveAway, it.TransactionType)
	assert.Equal(t, 1, it.Quantity)
	assert.Equal(t, 1, it.AvailableQuantity)
}

func TestEditItemChecks(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)
	neg := -1.0

	tests := []struct {
		name   string
		itemID int64
		actor  int64
		patch  model.ItemPatch
		want   error
	}{
		{"missing item", 999, owner, model.ItemPatch{}, ErrNotFound},
		{"not owner", itemID, requester, model.ItemPatch{Name: strPtr("x")}, ErrAuthorization},
		{"blank name", itemID, owner, model.ItemPatch{Name: strPtr("  ")}, ErrValidation},
		{"bad category", itemID, owner, model.ItemPatch{Category: strPtr("boat")}, ErrValidation},
		{"bad type", itemID, owner, model.ItemPatch{TransactionType: strPtr("sell")}, ErrValidation},
		{"negative price", itemID, owner, model.ItemPatch{PricePerHour: &neg}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.EditItem(ctx, tt.itemID, tt.actor, tt.patch)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, "Bike", s.item(itemID).Name)
}

func TestEditItemTypeBlockedByPendingRequests(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{QuantityRequested: intPtr(2)})
	require.NoError(t, err)

	_, err = l.EditItem(ctx, itemID, owner, model.ItemPatch{TransactionType: strPtr(model.TransactionExchange)})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, model.TransactionLend, s.item(itemID).TransactionType)

	// Other fields stay editable.
	_, err = l.EditItem(ctx, itemID, owner, model.ItemPatch{Description: strPtr("serviced")})
	require.NoError(t, err)

	_, err = l.Respond(ctx, r.ID, owner, model.RequestRejected)
	require.NoError(t, err)
	_, err = l.EditItem(ctx, itemID, owner, model.ItemPatch{TransactionType: strPtr(model.TransactionExchange)})
	require.NoError(t, err)
}

func TestRepostChecks(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	_, err := l.Repost(ctx, 9999, owner, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Repost(ctx, itemID, requester, nil)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = l.Repost(ctx, itemID, owner, intPtr(-1))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 3, s.item(itemID).Quantity)
}

func TestConcurrentAcceptsNeverOversell(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	const stock = 5
	itemID := lendItem(s, stock)

	var ids []int64
	for i := 0; i < 20; i++ {
		requesterID := int64(2000 + i)
		s.addUser(requesterID)
		r, err := l.SubmitRequest(ctx, itemID, requesterID, model.RequestPayload{})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := l.Respond(ctx, id, owner, model.RequestAccepted)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientInventory)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, stock, accepted)
	assert.Equal(t, 0, s.item(itemID).AvailableQuantity)
	assert.Equal(t, 0, l.locks.len())
}

func TestConcurrentDecisionsOnOneRequest(t *testing.T) {
	l, s, _ := setup(t)
	ctx := context.Background()
	itemID := lendItem(s, 3)

	r, err := l.SubmitRequest(ctx, itemID, requester, model.RequestPayload{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, d := range []string{model.RequestAccepted, model.RequestRejected, model.RequestAccepted, model.RequestRejected} {
		wg.Add(1)
		go func(d string) {
			defer wg.Done()
			if _, err := l.Respond(ctx, r.ID, owner, d); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(d)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, _ := s.request(r.ID)
	if got.Status == model.RequestAccepted {
		assert.Equal(t, 2, s.item(itemID).AvailableQuantity)
	} else {
		assert.Equal(t, 3, s.item(itemID).AvailableQuantity)
	}
}

func TestItemLocksCleanup(t *testing.T) {
	locks := newItemLocks()

	unlock := locks.lock(1)
	assert.Equal(t, 1, locks.len())

	done := make(chan struct{})
	go func() {
		defer close(done)
		locks.lock(1)()
	}()

	unlock()
	<-done
	assert.Equal(t, 0, locks.len())
}

func TestErrorKinds(t *testing.T) {
	err := newError(KindNotFound, "item not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)

	kind, ok := KindOf(fmtWrap(err))
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
	assert.Equal(t, "not found", ErrNotFound.Error())
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("context"), err)
}
