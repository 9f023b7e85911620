package model

import "testing"

func TestItemActive(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"lend with stock", Item{TransactionType: TransactionLend, AvailableQuantity: 2, Status: ItemStatusAvailable}, true},
		{"lend drained", Item{TransactionType: TransactionLend, AvailableQuantity: 0, Status: ItemStatusAvailable}, false},
		// Status does not matter for lend items.
		{"lend completed with stock", Item{TransactionType: TransactionLend, AvailableQuantity: 1, Status: ItemStatusCompleted}, true},
		{"give away available", Item{TransactionType: TransactionGiveAway, AvailableQuantity: 1, Status: ItemStatusAvailable}, true},
		{"give away completed", Item{TransactionType: TransactionGiveAway, AvailableQuantity: 1, Status: ItemStatusCompleted}, false},
		{"exchange unavailable", Item{TransactionType: TransactionExchange, AvailableQuantity: 1, Status: ItemStatusUnavailable}, false},
	}

	for _, tt := range tests {
		if got := tt.item.Active(); got != tt.want {
			t.Errorf("%s: Active() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidTransactionType(t *testing.T) {
	for _, tt := range []string{TransactionLend, TransactionGiveAway, TransactionExchange} {
		if !ValidTransactionType(tt) {
			t.Errorf("expected %q to be valid", tt)
		}
	}
	for _, tt := range []string{"", "sell", "LEND"} {
		if ValidTransactionType(tt) {
			t.Errorf("expected %q to be invalid", tt)
		}
	}
}

func TestRequestPatchApply(t *testing.T) {
	hours := 4
	r := &TransactionRequest{QuantityRequested: 1, Message: "hi"}

	qty := 3
	msg := "updated"
	RequestPatch{QuantityRequested: &qty, Message: &msg}.Apply(r)

	if r.QuantityRequested != 3 {
		t.Errorf("expected quantity 3, got %d", r.QuantityRequested)
	}
	if r.Message != "updated" {
		t.Errorf("expected message 'updated', got %q", r.Message)
	}
	if r.Hours != nil {
		t.Errorf("expected hours untouched, got %v", *r.Hours)
	}

	RequestPatch{Hours: &hours}.Apply(r)
	hours = 99
	if r.Hours == nil || *r.Hours != 4 {
		t.Errorf("expected hours 4 copied from patch, got %v", r.Hours)
	}
}

func TestItemPatchApplyFields(t *testing.T) {
	name, desc, price := "Vespa", "blue", 4.5
	it := Item{Name: "Scooter", Category: CategoryMotorbike, TransactionType: TransactionLend, Quantity: 3, AvailableQuantity: 2}

	ItemPatch{Name: &name, Description: &desc, PricePerHour: &price}.Apply(&it)

	if it.Name != "Vespa" || it.Description != "blue" {
		t.Errorf("fields not applied: %+v", it)
	}
	if it.PricePerHour == nil || *it.PricePerHour != 4.5 {
		t.Errorf("PricePerHour = %v, want 4.5", it.PricePerHour)
	}
	if it.Quantity != 3 || it.AvailableQuantity != 2 {
		t.Errorf("stock changed without a type change: %d/%d", it.AvailableQuantity, it.Quantity)
	}
}

func TestItemPatchApplyTypeChange(t *testing.T) {
	lend, give := TransactionLend, TransactionGiveAway
	tests := []struct {
		name          string
		item          Item
		to            *string
		wantQty       int
		wantAvailable int
		wantStatus    string
	}{
		{"lend with stock to give away", Item{TransactionType: lend, Quantity: 4, AvailableQuantity: 3, Status: ItemStatusAvailable}, &give, 1, 1, ItemStatusAvailable},
		{"drained lend to give away", Item{TransactionType: lend, Quantity: 2, AvailableQuantity: 0, Status: ItemStatusAvailable}, &give, 1, 0, ItemStatusUnavailable},
		{"available give away to lend", Item{TransactionType: give, Quantity: 1, AvailableQuantity: 1, Status: ItemStatusAvailable}, &lend, 1, 1, ItemStatusAvailable},
		{"completed give away to lend", Item{TransactionType: give, Quantity: 1, AvailableQuantity: 1, Status: ItemStatusCompleted}, &lend, 1, 0, ItemStatusCompleted},
		{"same type", Item{TransactionType: lend, Quantity: 4, AvailableQuantity: 3, Status: ItemStatusAvailable}, &lend, 4, 3, ItemStatusAvailable},
	}

	for _, tt := range tests {
		it := tt.item
		ItemPatch{TransactionType: tt.to}.Apply(&it)
		if it.TransactionType != *tt.to {
			t.Errorf("%s: type = %q, want %q", tt.name, it.TransactionType, *tt.to)
		}
		if it.Quantity != tt.wantQty || it.AvailableQuantity != tt.wantAvailable || it.Status != tt.wantStatus {
			t.Errorf("%s: got %d/%d %s, want %d/%d %s", tt.name,
				it.AvailableQuantity, it.Quantity, it.Status, tt.wantAvailable, tt.wantQty, tt.wantStatus)
		}
	}
}
