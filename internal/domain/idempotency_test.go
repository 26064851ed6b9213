package domain

import (
	"testing"
	"time"
)

func TestIdempotency_Migration_UniqueKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_idempotency_key") {
		t.Fatalf("expected unique index ux_idempotency_key")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID: "r1", Key: "k1", State: IdempotencyInFlight, Token: "t1",
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	again := &Idempotency{
		ID: "r2", Key: "k1", State: IdempotencyInFlight, Token: "t2",
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(again).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate key")
	}
}

func TestIdempotency_EffectiveState(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	orderID := "o1"

	tests := []struct {
		name    string
		rec     Idempotency
		want    IdempotencyState
		expired bool
	}{
		{"live in-flight", Idempotency{State: IdempotencyInFlight, ExpiresAt: now.Add(time.Minute)}, IdempotencyInFlight, false},
		{"expired in-flight is failed", Idempotency{State: IdempotencyInFlight, ExpiresAt: now.Add(-time.Second)}, IdempotencyFailed, true},
		{"expiry boundary counts as expired", Idempotency{State: IdempotencyInFlight, ExpiresAt: now}, IdempotencyFailed, true},
		{"expired completed stays completed", Idempotency{State: IdempotencyCompleted, OrderID: &orderID, ExpiresAt: now.Add(-time.Hour)}, IdempotencyCompleted, true},
		{"failed", Idempotency{State: IdempotencyFailed, ExpiresAt: now.Add(time.Hour)}, IdempotencyFailed, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.EffectiveState(now); got != tc.want {
				t.Fatalf("EffectiveState = %q; want %q", got, tc.want)
			}
			if got := tc.rec.Expired(now); got != tc.expired {
				t.Fatalf("Expired = %v; want %v", got, tc.expired)
			}
		})
	}
}
