package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"RewardsLedger/internal/ledger"
)

// QueryService provides read-only access to projection tables.
// All responses include as_of_sequence for freshness semantics: the
// projection watermark at the time of the query, which can lag the
// engine's committed sequence.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetBalance returns a holder's TOKEN and WBTC wallet balances.
func (qs *QueryService) GetBalance(ctx context.Context, holderID uuid.UUID) (*BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	tokenPath := ledger.NewHolderAccountKey(holderID, ledger.AssetToken).AccountPath()
	token, err := qs.getProjectedBalance(ctx, tokenPath)
	if err != nil {
		return nil, err
	}

	wbtcPath := ledger.NewHolderAccountKey(holderID, ledger.AssetWBTC).AccountPath()
	wbtc, err := qs.getProjectedBalance(ctx, wbtcPath)
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		HolderID:     holderID,
		TokenBalance: token,
		WBTCBalance:  wbtc,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetPoolStats returns the fee pool, rewards pending, and reserve balances.
func (qs *QueryService) GetPoolStats(ctx context.Context) (*PoolStatsResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	feePool, err := qs.getProjectedBalance(ctx, ledger.FeePoolKey().AccountPath())
	if err != nil {
		return nil, err
	}
	pending, err := qs.getProjectedBalance(ctx, ledger.RewardsPendingKey().AccountPath())
	if err != nil {
		return nil, err
	}
	reserve, err := qs.getProjectedBalance(ctx, ledger.ReserveKey().AccountPath())
	if err != nil {
		return nil, err
	}

	return &PoolStatsResponse{
		FeePool:        feePool,
		RewardsPending: pending,
		Reserve:        reserve,
		AsOfSequence:   asOfSeq,
	}, nil
}

// ListDistributions returns distribution epochs, newest first.
// Supports cursor-based pagination via beforeEpoch.
func (qs *QueryService) ListDistributions(
	ctx context.Context,
	limit int,
	beforeEpoch *int64,
) ([]DistributionResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT epoch_id, pending, holder_share, reserve_share, residual,
		       total_supply, holder_count, sequence,
		       (EXTRACT(EPOCH FROM distributed_at) * 1000000)::BIGINT
		FROM projections.distributions
	`
	args := []interface{}{}
	argIdx := 1

	if beforeEpoch != nil {
		query += fmt.Sprintf(" WHERE epoch_id < $%d", argIdx)
		args = append(args, *beforeEpoch)
		argIdx++
	}

	query += " ORDER BY epoch_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var epochs []DistributionResponse
	for rows.Next() {
		var d DistributionResponse
		d.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&d.EpochID, &d.Pending, &d.HolderShare, &d.ReserveShare, &d.Residual,
			&d.TotalSupply, &d.HolderCount, &d.Sequence, &d.DistributedAt,
		); err != nil {
			return nil, err
		}
		epochs = append(epochs, d)
	}

	return epochs, rows.Err()
}

// GetPayoutHistory returns reward payouts for a holder, newest epoch first.
func (qs *QueryService) GetPayoutHistory(
	ctx context.Context,
	holderID uuid.UUID,
	limit int,
	beforeEpoch *int64,
) ([]PayoutResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT epoch_id, balance, payout
		FROM projections.payouts
		WHERE holder_id = $1
	`
	args := []interface{}{holderID}
	argIdx := 2

	if beforeEpoch != nil {
		query += fmt.Sprintf(" AND epoch_id < $%d", argIdx)
		args = append(args, *beforeEpoch)
		argIdx++
	}

	query += " ORDER BY epoch_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []PayoutResponse
	for rows.Next() {
		var p PayoutResponse
		p.HolderID = holderID
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(&p.EpochID, &p.Balance, &p.Payout); err != nil {
			return nil, err
		}
		history = append(history, p)
	}

	return history, rows.Err()
}

// ListConversions returns fee conversions, newest first.
func (qs *QueryService) ListConversions(ctx context.Context, limit int) ([]ConversionResponse, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT conversion_id, token_amount, settled_amount, COALESCE(gateway_ref, ''), status, sequence
		FROM projections.conversions
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ConversionResponse
	for rows.Next() {
		var c ConversionResponse
		var settled sql.NullInt64
		if err := rows.Scan(
			&c.ConversionID, &c.TokenAmount, &settled, &c.GatewayRef, &c.Status, &c.Sequence,
		); err != nil {
			return nil, err
		}
		if settled.Valid {
			v := settled.Int64
			c.SettledAmount = &v
		}
		results = append(results, c)
	}

	return results, rows.Err()
}

// ListLiquidityAdds returns confirmed liquidity provisions, newest first.
func (qs *QueryService) ListLiquidityAdds(ctx context.Context, limit int) ([]LiquidityAddResponse, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT provision_id, amount, COALESCE(venue_ref, ''), sequence,
		       (EXTRACT(EPOCH FROM added_at) * 1000000)::BIGINT
		FROM projections.liquidity_adds
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LiquidityAddResponse
	for rows.Next() {
		var l LiquidityAddResponse
		if err := rows.Scan(&l.ProvisionID, &l.Amount, &l.VenueRef, &l.Sequence, &l.AddedAt); err != nil {
			return nil, err
		}
		results = append(results, l)
	}

	return results, rows.Err()
}

// GetJournalHistory returns journal entries touching a holder's accounts,
// with cursor-based pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	holderID uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("holder:%s:%%", holderID)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE debit_account LIKE $1 OR credit_account LIKE $1
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain and global balance invariants.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Check hash chain continuity
	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence, e1.prev_hash, e2.state_hash
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var prevHash, expectedHash []byte
		if err := rows.Scan(&seq, &prevHash, &expectedHash); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}

	// Check global balance (should sum to zero across all accounts per asset)
	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) as total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) getProjectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
