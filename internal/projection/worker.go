package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"RewardsLedger/internal/event"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between engine.Output and this.
type ProjectionOutput struct {
	Sequence       int64
	EventType      string
	Payload        []byte // JSON-encoded event payload
	JournalEntries []JournalEntry
	Timestamp      int64
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
}

// ProjectionWorker updates projection tables from processed events.
// The projection channel is non-blocking with drop: if projections fall
// behind, they can be rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue — projections are eventually consistent
				// and can be rebuilt from the event log
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Update balance projections from journal entries
	for _, j := range output.JournalEntries {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	// Update typed history tables from the event payload
	if err := pw.updateHistoryProjection(ctx, tx, output); err != nil {
		return fmt.Errorf("history projection: %w", err)
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateBalanceProjection mirrors the engine convention: the debit account
// receives the amount, the credit account pays it.
func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4, updated_at = NOW()
	`, j.DebitAccount, j.AssetID, j.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4, updated_at = NOW()
	`, j.CreditAccount, j.AssetID, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

func (pw *ProjectionWorker) updateHistoryProjection(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	switch output.EventType {
	case event.EventTypeRewardsDistributed.String():
		var evt event.RewardsDistributed
		if err := json.Unmarshal(output.Payload, &evt); err != nil {
			return err
		}
		return pw.insertDistribution(ctx, tx, output.Sequence, &evt)

	case event.EventTypeConversionStarted.String():
		var evt event.ConversionStarted
		if err := json.Unmarshal(output.Payload, &evt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.conversions (conversion_id, token_amount, status, sequence)
			VALUES ($1, $2, 'started', $3)
			ON CONFLICT (conversion_id) DO NOTHING
		`, evt.ConversionID, evt.TokenAmount, output.Sequence)
		return err

	case event.EventTypeFeesConverted.String():
		var evt event.FeesConverted
		if err := json.Unmarshal(output.Payload, &evt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.conversions (conversion_id, token_amount, settled_amount, gateway_ref, status, sequence)
			VALUES ($1, $2, $3, $4, 'settled', $5)
			ON CONFLICT (conversion_id) DO UPDATE
				SET settled_amount = $3, gateway_ref = $4, status = 'settled', sequence = $5, updated_at = NOW()
		`, evt.ConversionID, evt.TokenAmount, evt.SettledAmount, evt.GatewayRef, output.Sequence)
		return err

	case event.EventTypeConversionReverted.String():
		var evt event.ConversionReverted
		if err := json.Unmarshal(output.Payload, &evt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.conversions (conversion_id, token_amount, status, sequence)
			VALUES ($1, $2, 'reverted', $3)
			ON CONFLICT (conversion_id) DO UPDATE
				SET status = 'reverted', sequence = $3, updated_at = NOW()
		`, evt.ConversionID, evt.TokenAmount, output.Sequence)
		return err

	case event.EventTypeLiquidityAdded.String():
		var evt event.LiquidityAdded
		if err := json.Unmarshal(output.Payload, &evt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.liquidity_adds (provision_id, amount, venue_ref, sequence, added_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (provision_id) DO NOTHING
		`, evt.ProvisionID, evt.Amount, evt.VenueRef, output.Sequence, evt.Timestamp)
		return err
	}

	return nil
}

func (pw *ProjectionWorker) insertDistribution(ctx context.Context, tx *sql.Tx, seq int64, evt *event.RewardsDistributed) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.distributions
			(epoch_id, pending, holder_share, reserve_share, residual, total_supply, holder_count, sequence, distributed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (epoch_id) DO NOTHING
	`, evt.EpochID, evt.Pending, evt.HolderShare, evt.ReserveShare, evt.Residual,
		evt.TotalSupply, len(evt.Payouts), seq, evt.Timestamp); err != nil {
		return err
	}

	for _, p := range evt.Payouts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.payouts (epoch_id, holder_id, balance, payout)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (epoch_id, holder_id) DO NOTHING
		`, evt.EpochID, p.HolderID, p.Balance, p.Payout); err != nil {
			return err
		}
	}

	return nil
}

// RebuildProjections rebuilds the balance projection from the event log.
// History tables keep their idempotent inserts; balances are recomputed
// wholesale from the journal.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debits increase the account balance
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = EXCLUDED.balance, last_sequence = EXCLUDED.last_sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	// Credits decrease it
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
