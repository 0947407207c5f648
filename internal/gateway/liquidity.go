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

// DexLiquidityVenue submits reserve WBTC to an external liquidity venue over
// NATS request/reply. The reserve is only debited after the venue confirms,
// so a failed call needs no compensation.
type DexLiquidityVenue struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
	logger  zerolog.Logger
}

type liquidityRequest struct {
	ProvisionID string `json:"provision_id"`
	Asset       string `json:"asset"`
	Amount      int64  `json:"amount"`
}

type liquidityResponse struct {
	Status string `json:"status"` // "added" or "rejected"
	Ref    string `json:"ref"`
	Reason string `json:"reason,omitempty"`
}

func NewDexLiquidityVenue(nc *nats.Conn, subject string, timeout time.Duration, logger zerolog.Logger) *DexLiquidityVenue {
	if subject == "" {
		subject = "dex.liquidity.add"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DexLiquidityVenue{
		nc:      nc,
		subject: subject,
		timeout: timeout,
		logger:  logger,
	}
}

// AddLiquidity asks the venue to accept the given WBTC amount and returns
// the venue's confirmation reference.
func (v *DexLiquidityVenue) AddLiquidity(ctx context.Context, provisionID uuid.UUID, amount int64) (string, error) {
	req := liquidityRequest{
		ProvisionID: provisionID.String(),
		Asset:       "WBTC",
		Amount:      amount,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal liquidity request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	msg, err := v.nc.RequestWithContext(reqCtx, v.subject, data)
	if err != nil {
		v.logger.Warn().
			Str("provision_id", provisionID.String()).
			Int64("amount", amount).
			Err(err).
			Msg("liquidity request failed")
		return "", fmt.Errorf("liquidity request: %w", err)
	}

	var resp liquidityResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return "", fmt.Errorf("parse liquidity response: %w", err)
	}

	if resp.Status != "added" {
		return "", fmt.Errorf("liquidity rejected: %s", resp.Reason)
	}

	return resp.Ref, nil
}
