package ingestion

import (
	"RewardsLedger/internal/engine"
	fpmath "RewardsLedger/internal/math"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ParseTransferCommand converts raw JSON bytes into a typed engine command.
// The ingestion shell validates and parses before sending to the engine.
func ParseTransferCommand(data []byte) (*engine.TransferCommand, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Transfer: %w", err)
	}

	transferID, err := uuid.Parse(j.TransferID)
	if err != nil {
		return nil, fmt.Errorf("parse transfer_id: %w", err)
	}
	senderID, err := uuid.Parse(j.SenderID)
	if err != nil {
		return nil, fmt.Errorf("parse sender_id: %w", err)
	}
	recipientID, err := uuid.Parse(j.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("parse recipient_id: %w", err)
	}

	kind, ok := fpmath.ParseTransferKind(j.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown transfer kind: %q", j.Kind)
	}

	if j.Amount <= 0 {
		return nil, fmt.Errorf("non-positive amount: %d", j.Amount)
	}

	return &engine.TransferCommand{
		TransferID:     transferID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Kind:           kind,
		Amount:         j.Amount,
		SourceSequence: j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

// ParseMintCommand converts raw JSON bytes into a typed mint command.
func ParseMintCommand(data []byte) (*engine.MintCommand, error) {
	var j mintJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Mint: %w", err)
	}

	mintID, err := uuid.Parse(j.MintID)
	if err != nil {
		return nil, fmt.Errorf("parse mint_id: %w", err)
	}
	recipientID, err := uuid.Parse(j.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("parse recipient_id: %w", err)
	}

	if j.Amount <= 0 {
		return nil, fmt.Errorf("non-positive amount: %d", j.Amount)
	}

	return &engine.MintCommand{
		MintID:         mintID,
		RecipientID:    recipientID,
		Amount:         j.Amount,
		SourceSequence: j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type transferJSON struct {
	TransferID  string `json:"transfer_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Kind        string `json:"kind"` // "buy", "sell", or "plain"
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

type mintJSON struct {
	MintID      string `json:"mint_id"`
	RecipientID string `json:"recipient_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}
