package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeMintSettled
	EventTypeTransferSettled
	EventTypeConversionStarted
	EventTypeFeesConverted
	EventTypeConversionReverted
	EventTypeRewardsDistributed
	EventTypeLiquidityAdded
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeMintSettled:
		return "MintSettled"
	case EventTypeTransferSettled:
		return "TransferSettled"
	case EventTypeConversionStarted:
		return "ConversionStarted"
	case EventTypeFeesConverted:
		return "FeesConverted"
	case EventTypeConversionReverted:
		return "ConversionReverted"
	case EventTypeRewardsDistributed:
		return "RewardsDistributed"
	case EventTypeLiquidityAdded:
		return "LiquidityAdded"
	default:
		return "Unknown"
	}
}
