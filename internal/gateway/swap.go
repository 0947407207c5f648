package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SwapGateway converts accumulated TOKEN fees into WBTC through an external
// swap service reached over NATS request/reply. The engine holds no lock
// while a request is outstanding, so a slow swap never blocks transfers.
type SwapGateway struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
	logger  zerolog.Logger
}

type swapRequest struct {
	ConversionID string `json:"conversion_id"`
	FromAsset    string `json:"from_asset"`
	ToAsset      string `json:"to_asset"`
	Amount       int64  `json:"amount"`
}

type swapResponse struct {
	Status        string `json:"status"` // "filled" or "rejected"
	SettledAmount int64  `json:"settled_amount"`
	Ref           string `json:"ref"`
	Reason        string `json:"reason,omitempty"`
}

func NewSwapGateway(nc *nats.Conn, subject string, timeout time.Duration, logger zerolog.Logger) *SwapGateway {
	if subject == "" {
		subject = "swap.convert"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SwapGateway{
		nc:      nc,
		subject: subject,
		timeout: timeout,
		logger:  logger,
	}
}

// Convert requests a TOKEN -> WBTC swap and returns the settled WBTC amount.
// Any transport failure, timeout, or rejection is returned as an error; the
// engine credits the drained fees back on error.
func (g *SwapGateway) Convert(ctx context.Context, conversionID uuid.UUID, tokenAmount int64) (int64, string, error) {
	req := swapRequest{
		ConversionID: conversionID.String(),
		FromAsset:    "TOKEN",
		ToAsset:      "WBTC",
		Amount:       tokenAmount,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return 0, "", fmt.Errorf("marshal swap request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	msg, err := g.nc.RequestWithContext(reqCtx, g.subject, data)
	if err != nil {
		g.logger.Warn().
			Str("conversion_id", conversionID.String()).
			Int64("amount", tokenAmount).
			Err(err).
			Msg("swap request failed")
		return 0, "", fmt.Errorf("swap request: %w", err)
	}

	var resp swapResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return 0, "", fmt.Errorf("parse swap response: %w", err)
	}

	if resp.Status != "filled" {
		return 0, "", fmt.Errorf("swap rejected: %s", resp.Reason)
	}
	if resp.SettledAmount <= 0 {
		return 0, "", fmt.Errorf("swap returned non-positive settlement: %d", resp.SettledAmount)
	}

	return resp.SettledAmount, resp.Ref, nil
}
