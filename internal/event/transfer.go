package event

import (
	"time"

	"github.com/google/uuid"
)

// TransferSettled records a completed wallet-to-wallet transfer, including the
// fee withheld when the transfer was classified as buy or sell.
// Idempotency key: transfer_id (UUID from upstream).
type TransferSettled struct {
	TransferID  uuid.UUID // Idempotency key
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Kind        string    // "plain", "buy", "sell"
	Amount      int64     // Fixed-point: token scale (decimal_precision=6, scale=1_000_000)
	Fee         int64     // Withheld into the fee pool, token scale
	Net         int64     // Delivered to recipient, token scale
	SourceSeq   int64     // Source sequence from upstream
	Timestamp   time.Time // Versioned input timestamp (NOT wall-clock)
}

func (t *TransferSettled) IdempotencyKey() string {
	return t.TransferID.String()
}

func (t *TransferSettled) EventType() EventType {
	return EventTypeTransferSettled
}

func (t *TransferSettled) SourceSequence() int64 {
	return t.SourceSeq
}
