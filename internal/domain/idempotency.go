package domain

import "time"

// IdempotencyRecord maps a caller-supplied idempotency key to the
// payment it produced, so resubmission replays the stored outcome
// instead of creating a duplicate obligation.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	PaymentID string    `json:"payment_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stage names one checkpoint in the atomic payment orchestrator's
// pipeline, used both for persistence and for LIFO compensation
// ordering.
type Stage string

const (
	StageCompliance Stage = "compliance"
	StageRisk       Stage = "risk"
	StageLiquidity  Stage = "liquidity_hold"
	StageObligation Stage = "obligation"
	StageClearing   Stage = "clearing"
	StageSettlement Stage = "settlement"
)

// Checkpoint records that Stage completed for a payment, so a crash
// mid-pipeline resumes (or compensates) from the last durable point
// rather than re-running completed side effects.
type Checkpoint struct {
	PaymentID  string    `json:"payment_id"`
	Stage      Stage     `json:"stage"`
	Done       bool      `json:"done"`
	RecordedAt time.Time `json:"recorded_at"`
}
