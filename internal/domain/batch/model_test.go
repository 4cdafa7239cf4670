package batch

import (
	"context"
	"testing"
	"time"

	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestBatchValidate(t *testing.T) {
	now := time.Now().UTC()
	productID := id.New()

	tests := []struct {
		name    string
		mutate  func(*Batch)
		wantErr bool
	}{
		{"valid", func(b *Batch) {}, false},
		{"missing product", func(b *Batch) { b.ProductID = id.Nil() }, true},
		{"missing batch number", func(b *Batch) { b.BatchNumber = "" }, true},
		{"negative unit cost", func(b *Batch) { b.UnitCost = types.MustMoney("-1") }, true},
		{"expiry before manufacturing", func(b *Batch) {
			b.ManufacturedAt = ptrTime(now)
			b.ExpiresAt = ptrTime(now.Add(-time.Hour))
		}, true},
		{"expiry after manufacturing", func(b *Batch) {
			b.ManufacturedAt = ptrTime(now)
			b.ExpiresAt = ptrTime(now.Add(24 * time.Hour))
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatch(productID, "B-2026-001")
			tt.mutate(b)

			err := b.Validate(context.Background())
			if tt.wantErr && err == nil {
				t.Errorf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBatchExpiry(t *testing.T) {
	now := time.Now().UTC()

	b := NewBatch(id.New(), "B-2026-001")
	if b.IsExpired(now) {
		t.Errorf("batch without expiry date must not be expired")
	}
	if b.ExpiresWithin(365*24*time.Hour, now) {
		t.Errorf("batch without expiry date must not expire within any window")
	}

	b.ExpiresAt = ptrTime(now.Add(10 * 24 * time.Hour))
	if b.IsExpired(now) {
		t.Errorf("future expiry must not be expired")
	}
	if !b.ExpiresWithin(30*24*time.Hour, now) {
		t.Errorf("expiry in 10 days must be inside a 30 day window")
	}
	if b.ExpiresWithin(5*24*time.Hour, now) {
		t.Errorf("expiry in 10 days must be outside a 5 day window")
	}

	b.ExpiresAt = ptrTime(now.Add(-time.Hour))
	if !b.IsExpired(now) {
		t.Errorf("past expiry must be expired")
	}
}
