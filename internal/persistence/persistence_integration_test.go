package persistence_test

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"RewardsLedger/internal/persistence"
	"RewardsLedger/internal/testutil"
)

func setupIntegration(t *testing.T) (context.Context, *sql.DB, *persistence.SnapshotManager, *persistence.EventLogWriter, func()) {
	t.Helper()
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	ctx := context.Background()

	if err := persistence.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		cleanup()
		t.Fatalf("migrate up: %v", err)
	}

	return ctx, db, persistence.NewSnapshotManager(db), persistence.NewEventLogWriter(db, 50, time.Second), cleanup
}

func writeBatch(t *testing.T, ctx context.Context, db *sql.DB, w *persistence.EventLogWriter, events []persistence.EventRow, journals []persistence.JournalRow) {
	t.Helper()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := w.WriteEventBatch(ctx, events, tx); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := w.WriteJournalBatch(ctx, journals, tx); err != nil {
		t.Fatalf("write journals: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func testEventRow(seq int64, hash byte) persistence.EventRow {
	var state, prev [32]byte
	state[0] = hash
	prev[0] = hash - 1

	return persistence.EventRow{
		Sequence:       seq,
		EventType:      "TransferSettled",
		IdempotencyKey: uuid.New().String(),
		Payload:        []byte(`{"amount":1000}`),
		StateHash:      state[:],
		PrevHash:       prev[:],
		Timestamp:      time.Now().UTC(),
		SourceSequence: seq,
	}
}

func testJournalRow(seq int64) persistence.JournalRow {
	return persistence.JournalRow{
		JournalID:     uuid.New().String(),
		BatchID:       uuid.New().String(),
		EventRef:      uuid.New().String(),
		Sequence:      seq,
		DebitAccount:  "system:fee_pool:TOKEN",
		CreditAccount: "holder:" + uuid.New().String() + ":wallet:TOKEN",
		AssetID:       1,
		Amount:        50,
		JournalType:   2,
		Timestamp:     time.Now().UnixMicro(),
	}
}

// ============================================================================
// Test: event log round trip
// ============================================================================

func TestEventLog_WriteAndReload(t *testing.T) {
	ctx, db, sm, w, cleanup := setupIntegration(t)
	defer cleanup()

	events := []persistence.EventRow{testEventRow(0, 1), testEventRow(1, 2), testEventRow(2, 3)}
	journals := []persistence.JournalRow{testJournalRow(0), testJournalRow(1), testJournalRow(2)}
	writeBatch(t, ctx, db, w, events, journals)

	seq, err := sm.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if seq != 2 {
		t.Errorf("latest sequence: got %d, want 2", seq)
	}

	tipSeq, tipHash, err := sm.GetChainTip(ctx)
	if err != nil {
		t.Fatalf("chain tip: %v", err)
	}
	if tipSeq != 2 {
		t.Errorf("tip sequence: got %d, want 2", tipSeq)
	}
	if !bytes.Equal(tipHash, events[2].StateHash) {
		t.Error("tip hash mismatch")
	}

	loaded, err := sm.LoadJournalsAfter(ctx, journals[0].Sequence, journals[0].JournalID, 100)
	if err != nil {
		t.Fatalf("load journals: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("got %d journals after seq 0, want 2", len(loaded))
	}

	keys, err := sm.LoadRecentIdempotencyKeys(ctx, 10)
	if err != nil {
		t.Fatalf("load keys: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("got %d keys, want 3", len(keys))
	}
}

func TestEventLog_DuplicateWriteIgnored(t *testing.T) {
	ctx, db, sm, w, cleanup := setupIntegration(t)
	defer cleanup()

	evt := testEventRow(0, 1)
	writeBatch(t, ctx, db, w, []persistence.EventRow{evt}, nil)
	writeBatch(t, ctx, db, w, []persistence.EventRow{evt}, nil)

	seq, err := sm.GetLatestSequence(ctx)
	if err != nil {
		t.Fatalf("latest sequence: %v", err)
	}
	if seq != 0 {
		t.Errorf("latest sequence: got %d, want 0", seq)
	}
}

// ============================================================================
// Test: journal replay pagination
// ============================================================================

// A fee-bearing transfer or a distribution writes several journal rows
// under one sequence. Paging replay must not split such a group: the
// (sequence, journal_id) cursor picks up the tail of a group that falls
// past the page limit.
func TestLoadJournalsAfter_GroupSpansPageBoundary(t *testing.T) {
	ctx, db, sm, w, cleanup := setupIntegration(t)
	defer cleanup()

	events := []persistence.EventRow{testEventRow(0, 1), testEventRow(1, 2), testEventRow(2, 3)}
	journals := []persistence.JournalRow{testJournalRow(0)}
	for i := 0; i < 3; i++ {
		journals = append(journals, testJournalRow(1))
	}
	journals = append(journals, testJournalRow(2))
	writeBatch(t, ctx, db, w, events, journals)

	// Page with a limit that cuts inside the seq-1 group.
	seen := make(map[string]bool)
	lastSeq, lastID := int64(-1), uuid.Nil.String()
	for {
		page, err := sm.LoadJournalsAfter(ctx, lastSeq, lastID, 2)
		if err != nil {
			t.Fatalf("load page after (%d, %s): %v", lastSeq, lastID, err)
		}
		if len(page) == 0 {
			break
		}
		for _, j := range page {
			if seen[j.JournalID] {
				t.Fatalf("journal %s returned twice", j.JournalID)
			}
			seen[j.JournalID] = true
		}
		last := page[len(page)-1]
		lastSeq, lastID = last.Sequence, last.JournalID
	}

	if len(seen) != len(journals) {
		t.Fatalf("got %d journals across pages, want %d", len(seen), len(journals))
	}
	for _, j := range journals {
		if !seen[j.JournalID] {
			t.Errorf("journal %s at seq %d dropped during paging", j.JournalID, j.Sequence)
		}
	}
}

// ============================================================================
// Test: snapshots
// ============================================================================

func TestSnapshot_SaveAndLoadLatest(t *testing.T) {
	ctx, _, sm, _, cleanup := setupIntegration(t)
	defer cleanup()

	if snap, err := sm.LoadLatestSnapshot(ctx); err != nil || snap != nil {
		t.Fatalf("cold start: got (%v, %v), want (nil, nil)", snap, err)
	}

	hash := bytes.Repeat([]byte{7}, 32)
	saved := &persistence.SnapshotData{
		Sequence:  42,
		StateHash: hash,
		PrevHash:  hash,
		Balances: map[string]int64{
			"system:fee_pool:TOKEN":       500,
			"system:rewards_pending:WBTC": 1_000_000,
		},
		LastDistributionUs: time.Now().UnixMicro(),
		DistributionEpoch:  3,
		ConversionInFlight: false,
		IdempotencyKeys:    []string{"TransferSettled:" + uuid.New().String()},
		CreatedAt:          time.Now().UTC(),
	}

	if err := sm.SaveSnapshot(ctx, saved); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	loaded, err := sm.LoadLatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a snapshot")
	}
	if loaded.Sequence != 42 || loaded.DistributionEpoch != 3 {
		t.Errorf("got seq=%d epoch=%d, want 42 and 3", loaded.Sequence, loaded.DistributionEpoch)
	}
	if loaded.Balances["system:fee_pool:TOKEN"] != 500 {
		t.Errorf("fee pool balance: got %d, want 500", loaded.Balances["system:fee_pool:TOKEN"])
	}
	if len(loaded.IdempotencyKeys) != 1 {
		t.Errorf("got %d idempotency keys, want 1", len(loaded.IdempotencyKeys))
	}
}

// ============================================================================
// Test: Postgres idempotency checker
// ============================================================================

func TestPostgresIdempotencyChecker(t *testing.T) {
	ctx, db, _, w, cleanup := setupIntegration(t)
	defer cleanup()

	evt := testEventRow(0, 1)
	writeBatch(t, ctx, db, w, []persistence.EventRow{evt}, nil)

	checker := persistence.NewPostgresIdempotencyChecker(db)

	dup, err := checker.IsDuplicate(evt.EventType, evt.IdempotencyKey)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !dup {
		t.Error("persisted key should be a duplicate")
	}

	dup, err = checker.IsDuplicate(evt.EventType, uuid.New().String())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if dup {
		t.Error("unknown key should not be a duplicate")
	}
}
