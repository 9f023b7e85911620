package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// memState holds the rows of the in-memory store. It implements Tx without
// locking; memStore serializes access.
type memState struct {
	items    map[int64]model.Item
	requests map[int64]model.TransactionRequest
	nextID   int64

	// failOn makes the named write fail, to exercise rollback.
	failOn string
}

func (s *memState) clone() *memState {
	c := &memState{
		items:    make(map[int64]model.Item, len(s.items)),
		requests: make(map[int64]model.TransactionRequest, len(s.requests)),
		nextID:   s.nextID,
		failOn:   s.failOn,
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}

var errInjected = errors.New("injected failure")

func (s *memState) GetItem(_ context.Context, id int64) (*model.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (s *memState) GetRequest(_ context.Context, id int64) (*model.TransactionRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memState) CreateRequest(_ context.Context, r *model.TransactionRequest) (int64, error) {
	s.nextID++
	c := *r
	c.ID = s.nextID
	c.CreatedAt = time.Now()
	s.requests[c.ID] = c
	return c.ID, nil
}

func (s *memState) UpdateRequestFields(_ context.Context, r *model.TransactionRequest) error {
	cur := s.requests[r.ID]
	cur.Hours = r.Hours
	cur.QuantityRequested = r.QuantityRequested
	cur.ExchangeItemID = r.ExchangeItemID
	cur.Message = r.Message
	s.requests[r.ID] = cur
	return nil
}

func (s *memState) SetRequestStatus(_ context.Context, id int64, status string) error {
	if s.failOn == "SetRequestStatus" {
		return errInjected
	}
	r := s.requests[id]
	r.Status = status
	now := time.Now()
	r.RespondedAt = &now
	s.requests[id] = r
	return nil
}

func (s *memState) DeleteRequest(_ context.Context, id int64) error {
	delete(s.requests, id)
	return nil
}

func (s *memState) DecrementAvailable(_ context.Context, itemID int64, qty int) (bool, error) {
	it, ok := s.items[itemID]
	if !ok || it.TransactionType != model.TransactionLend || it.AvailableQuantity < qty {
		return false, nil
	}
	it.AvailableQuantity -= qty
	s.items[itemID] = it
	return true, nil
}

func (s *memState) SetItemStatus(_ context.Context, itemID int64, status string) error {
	it := s.items[itemID]
	it.Status = status
	s.items[itemID] = it
	return nil
}

func (s *memState) ResetItem(_ context.Context, itemID int64, qty int) error {
	it := s.items[itemID]
	it.Quantity = qty
	it.AvailableQuantity = qty
	it.Status = model.ItemStatusAvailable
	s.items[itemID] = it
	return nil
}

func (s *memState) UpdateItemFields(_ context.Context, it *model.Item) error {
	if s.failOn == "UpdateItemFields" {
		return errInjected
	}
	s.items[it.ID] = *it
	return nil
}

func (s *memState) CountPendingRequests(_ context.Context, itemID int64) (int, error) {
	n := 0
	for _, r := range s.requests {
		if r.ItemID == itemID && r.Status == model.RequestPending {
			n++
		}
	}
	return n, nil
}

// memStore is a Store whose transactions work on a copy of the state and
// swap it in on success.
type memStore struct {
	mu    sync.Mutex
	state *memState
	users map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			items:    make(map[int64]model.Item),
			requests: make(map[int64]model.TransactionRequest),
		},
		users: make(map[int64]bool),
	}
}

func (m *memStore) addUser(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = true
}

func (m *memStore) addItem(it model.Item) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextID++
	it.ID = m.state.nextID
	if it.Status == "" {
		it.Status = model.ItemStatusAvailable
	}
	m.state.items[it.ID] = it
	return it.ID
}

func (m *memStore) item(id int64) model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.items[id]
}

func (m *memStore) request(id int64) (model.TransactionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.requests[id]
	return r, ok
}

func (m *memStore) setFailOn(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.failOn = op
}

func (m *memStore) UserExists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetItem(ctx, id)
}

func (m *memStore) GetRequest(ctx context.Context, id int64) (*model.TransactionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetRequest(ctx, id)
}

func (m *memStore) CreateRequest(ctx context.Context, r *model.TransactionRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateRequest(ctx, r)
}

func (m *memStore) UpdateRequestFields(ctx context.Context, r *model.TransactionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateRequestFields(ctx, r)
}

func (m *memStore) SetRequestStatus(ctx context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SetRequestStatus(ctx, id, status)
}

func (m *memStore) DeleteRequest(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteRequest(ctx, id)
}

func (m *memStore) DecrementAvailable(ctx context.Context, itemID int64, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DecrementAvailable(ctx, itemID, qty)
}

func (m *memStore) SetItemStatus(ctx context.Context, itemID int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SetItemStatus(ctx, itemID, status)
}

func (m *memStore) ResetItem(ctx context.Context, itemID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ResetItem(ctx, itemID, qty)
}

func (m *memStore) UpdateItemFields(ctx context.Context, it *model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateItemFields(ctx, it)
}

func (m *memStore) CountPendingRequests(ctx context.Context, itemID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CountPendingRequests(ctx, itemID)
}

// recordingNotifier collects events and optionally fails every delivery.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

// blockingNotifier holds its first delivery until release is closed.
type blockingNotifier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
}

func (n *blockingNotifier) Notify(_ context.Context, _ Event) error {
	first := false
	n.once.Do(func() { first = true })
	if first {
		close(n.entered)
		<-n.release
	}
	return nil
}
