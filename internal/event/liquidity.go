package event

import (
	"time"

	"github.com/google/uuid"
)

// LiquidityAdded records a successful reserve deployment to the liquidity
// venue. The reserve was debited only after venue confirmation.
// Idempotency key: provision_id (UUID assigned by core at call time).
type LiquidityAdded struct {
	ProvisionID uuid.UUID // Idempotency key
	Amount      int64     // Debited from the reserve, settlement scale
	VenueRef    string    // Venue-side reference for reconciliation
	SourceSeq   int64
	Timestamp   time.Time
}

func (l *LiquidityAdded) IdempotencyKey() string {
	return l.ProvisionID.String()
}

func (l *LiquidityAdded) EventType() EventType {
	return EventTypeLiquidityAdded
}

func (l *LiquidityAdded) SourceSequence() int64 {
	return l.SourceSeq
}
