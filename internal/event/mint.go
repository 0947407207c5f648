package event

import (
	"time"

	"github.com/google/uuid"
)

// MintSettled records new token supply issued to a holder wallet.
// Idempotency key: mint_id (UUID from upstream).
type MintSettled struct {
	MintID      uuid.UUID // Idempotency key
	RecipientID uuid.UUID
	Amount      int64 // Fixed-point: token scale
	SourceSeq   int64
	Timestamp   time.Time
}

func (m *MintSettled) IdempotencyKey() string {
	return m.MintID.String()
}

func (m *MintSettled) EventType() EventType {
	return EventTypeMintSettled
}

func (m *MintSettled) SourceSequence() int64 {
	return m.SourceSeq
}
