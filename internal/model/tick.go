package model

import "time"

// Decision is the outcome of a strategy tick.
type Decision string

const (
	DecisionNone Decision = "none"
	DecisionBuy  Decision = "buy"
	DecisionSell Decision = "sell"
	DecisionSkip Decision = "skip"
)

// TickRecord is a journal entry for one bot tick.
type TickRecord struct {
	Strategy   string       `json:"strategy"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Decision   Decision     `json:"decision"`
	Receipt    *SwapReceipt `json:"receipt,omitempty"`
	Error      string       `json:"error,omitempty"`
}
