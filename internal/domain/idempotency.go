package domain

import "time"

// IdempotencyState is the lifecycle state of an idempotency record.
type IdempotencyState string

const (
	// IdempotencyInFlight marks a key claimed by a submission that has not
	// resolved yet.
	IdempotencyInFlight IdempotencyState = "in_flight"
	// IdempotencyCompleted marks a key whose submission created OrderID.
	IdempotencyCompleted IdempotencyState = "completed"
	// IdempotencyFailed marks a key whose last attempt errored; the key may be
	// claimed again.
	IdempotencyFailed IdempotencyState = "failed"
)

// Idempotency is the bookkeeping record of one logical checkout attempt,
// keyed by the client-supplied idempotency key. The unique index on Key is
// what makes the claim an atomic insert-if-absent.
//
// Token identifies the current claimant. Completion and failure are
// conditional on it, so a claimant whose record expired and was re-claimed by
// a later retry can no longer resolve it.
type Idempotency struct {
	ID        string           `gorm:"type:char(36);primaryKey"`
	Key       string           `gorm:"type:varchar(200);not null;uniqueIndex:ux_idempotency_key"`
	State     IdempotencyState `gorm:"type:varchar(16);not null;index"`
	OrderID   *string          `gorm:"type:char(36)"`
	Token     string           `gorm:"type:char(36);not null"`
	Attempts  int              `gorm:"not null;default:1"`
	CreatedAt time.Time        `gorm:"not null"`
	UpdatedAt time.Time        `gorm:"not null"`
	ExpiresAt time.Time        `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Expired reports whether the record's TTL has elapsed at now.
func (r *Idempotency) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// EffectiveState is the state the checkout guard acts on. An in-flight record
// past its TTL is treated as failed: the original attempt is presumed
// abandoned and the key becomes claimable again.
func (r *Idempotency) EffectiveState(now time.Time) IdempotencyState {
	if r.State == IdempotencyInFlight && r.Expired(now) {
		return IdempotencyFailed
	}
	return r.State
}
