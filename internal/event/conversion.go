package event

import (
	"time"

	"github.com/google/uuid"
)

// ConversionStarted records the fee pool drain at hand-off time, before the
// gateway call resolves. Either FeesConverted or ConversionReverted follows.
// Idempotency key: "{conversion_id}:start".
type ConversionStarted struct {
	ConversionID uuid.UUID
	TokenAmount  int64 // Drained from fee pool, token scale
	SourceSeq    int64
	Timestamp    time.Time
}

func (c *ConversionStarted) IdempotencyKey() string {
	return c.ConversionID.String() + ":start"
}

func (c *ConversionStarted) EventType() EventType {
	return EventTypeConversionStarted
}

func (c *ConversionStarted) SourceSequence() int64 {
	return c.SourceSeq
}

// FeesConverted records a successful swap of accumulated fees into the
// settlement asset. The drained token amount left the fee pool and the
// received settlement amount was credited to the rewards pending pool.
// Idempotency key: conversion_id (UUID assigned by core at drain time).
type FeesConverted struct {
	ConversionID  uuid.UUID // Idempotency key
	TokenAmount   int64     // Drained from fee pool, token scale
	SettledAmount int64     // Credited to rewards pending, settlement scale (decimal_precision=8, scale=100_000_000)
	GatewayRef    string    // Venue-side reference for reconciliation
	SourceSeq     int64
	Timestamp     time.Time
}

func (c *FeesConverted) IdempotencyKey() string {
	return c.ConversionID.String()
}

func (c *FeesConverted) EventType() EventType {
	return EventTypeFeesConverted
}

func (c *FeesConverted) SourceSequence() int64 {
	return c.SourceSeq
}

// ConversionReverted records the compensating credit after a gateway failure:
// the drained amount returned to the fee pool untouched.
// Idempotency key: "{conversion_id}:revert".
type ConversionReverted struct {
	ConversionID uuid.UUID
	TokenAmount  int64 // Returned to the fee pool, token scale
	Reason       string
	SourceSeq    int64
	Timestamp    time.Time
}

func (c *ConversionReverted) IdempotencyKey() string {
	return c.ConversionID.String() + ":revert"
}

func (c *ConversionReverted) EventType() EventType {
	return EventTypeConversionReverted
}

func (c *ConversionReverted) SourceSequence() int64 {
	return c.SourceSeq
}
