package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"RewardsLedger/internal/event"
	"RewardsLedger/internal/ledger"
	fpmath "RewardsLedger/internal/math"
	"RewardsLedger/internal/observability"
	"RewardsLedger/internal/state"
)

// Config holds the engine's economic parameters.
type Config struct {
	// FeeBasisPoints is withheld from buy and sell transfers (default 500 = 5%).
	FeeBasisPoints int64

	// HolderShareBasisPoints of each distribution goes to holders (default 5000 = 50%).
	HolderShareBasisPoints int64

	// DistributionInterval is the minimum time between distribution firings.
	DistributionInterval time.Duration

	// LiquidityThreshold is the minimum reserve balance, in settlement units,
	// that triggers provisioning.
	LiquidityThreshold int64

	// IdempotencyCapacity bounds the in-memory dedup LRU.
	IdempotencyCapacity int
}

// Output is one committed operation handed to downstream workers.
type Output struct {
	Envelope *event.EventEnvelope
	Batch    *ledger.Batch
	Event    event.Event
}

// Engine owns all ledger state and serializes every operation under one lock.
// Transfers, distribution ticks, and the locked phases of conversion and
// liquidity provisioning are mutually exclusive; the external gateway calls
// themselves run unlocked so transfers keep settling during them.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	sequence int64
	hasher   *StateHasher

	tracker     *ledger.BalanceTracker
	journalGen  *ledger.JournalGenerator
	validator   *ledger.InvariantValidator
	accumulator *state.FeeAccumulator
	rewardsPool *state.RewardsPool
	reserve     *state.Reserve
	idempotency *IdempotencyChecker

	gateway ConversionGateway
	venue   LiquidityVenue

	metrics *observability.Metrics
	logger  zerolog.Logger

	persistChan    chan<- Output
	projectionChan chan<- Output
}

func NewEngine(
	cfg Config,
	persistChan, projectionChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	gateway ConversionGateway,
	venue LiquidityVenue,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Engine {
	tracker := ledger.NewBalanceTracker()

	capacity := cfg.IdempotencyCapacity
	if capacity <= 0 {
		capacity = 1_000_000
	}

	return &Engine{
		cfg:            cfg,
		hasher:         NewStateHasher(),
		tracker:        tracker,
		journalGen:     ledger.NewJournalGenerator(0, tracker),
		validator:      ledger.NewInvariantValidator(tracker),
		accumulator:    state.NewFeeAccumulator(),
		rewardsPool:    state.NewRewardsPool(),
		reserve:        state.NewReserve(cfg.LiquidityThreshold),
		idempotency:    NewIdempotencyChecker(capacity, dbChecker),
		gateway:        gateway,
		venue:          venue,
		metrics:        metrics,
		logger:         logger,
		persistChan:    persistChan,
		projectionChan: projectionChan,
	}
}

// TransferCommand is a parsed transfer request.
type TransferCommand struct {
	TransferID     uuid.UUID
	SenderID       uuid.UUID
	RecipientID    uuid.UUID
	Kind           fpmath.TransferKind
	Amount         int64
	SourceSequence int64
	Timestamp      time.Time
}

// TransferReceipt reports the settled amounts and resulting balances.
type TransferReceipt struct {
	TransferID       uuid.UUID
	Fee              int64
	Net              int64
	Sequence         int64
	SenderBalance    int64
	RecipientBalance int64
	Duplicate        bool
}

// Transfer settles a wallet-to-wallet transfer, withholding the fee for buy
// and sell kinds. Either the whole transfer applies (net + fee) or none of it.
func (e *Engine) Transfer(cmd *TransferCommand) (*TransferReceipt, error) {
	start := time.Now()
	opType := event.EventTypeTransferSettled.String()
	key := cmd.TransferID.String()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.idempotency.IsDuplicate(opType, key) {
		if e.metrics != nil {
			e.metrics.EngineOpsRejected.WithLabelValues(opType, "duplicate").Inc()
		}
		return &TransferReceipt{TransferID: cmd.TransferID, Duplicate: true}, nil
	}

	if cmd.SenderID == cmd.RecipientID {
		e.reject(opType, "self_transfer")
		return nil, fmt.Errorf("%w: sender and recipient are the same wallet", ErrInvalidAmount)
	}

	fee, net, err := fpmath.ComputeFee(cmd.Amount, cmd.Kind, e.cfg.FeeBasisPoints)
	if err != nil {
		e.reject(opType, "invalid_amount")
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, cmd.Amount)
	}

	if err := e.tracker.ValidateSufficientBalance(cmd.SenderID, ledger.AssetToken, cmd.Amount); err != nil {
		e.reject(opType, "insufficient_balance")
		return nil, fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	}

	batch, err := e.journalGen.GenerateTransfer(
		cmd.TransferID, cmd.SenderID, cmd.RecipientID, fee, net, cmd.Timestamp.UnixMicro())
	if err != nil {
		e.reject(opType, "generate")
		return nil, err
	}

	evt := &event.TransferSettled{
		TransferID:  cmd.TransferID,
		SenderID:    cmd.SenderID,
		RecipientID: cmd.RecipientID,
		Kind:        cmd.Kind.String(),
		Amount:      cmd.Amount,
		Fee:         fee,
		Net:         net,
		SourceSeq:   cmd.SourceSequence,
		Timestamp:   cmd.Timestamp,
	}

	seq := e.commit(evt, batch)

	if err := e.tracker.ValidateNonNegative(ledger.NewHolderAccountKey(cmd.SenderID, ledger.AssetToken)); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	if e.metrics != nil && fee > 0 {
		e.metrics.FeesWithheld.Add(float64(fee))
		e.metrics.FeePoolBalance.Set(float64(e.tracker.GetBalance(ledger.FeePoolKey())))
	}
	e.recordApplied(opType, start)

	return &TransferReceipt{
		TransferID:       cmd.TransferID,
		Fee:              fee,
		Net:              net,
		Sequence:         seq,
		SenderBalance:    e.tracker.GetWalletBalance(cmd.SenderID, ledger.AssetToken),
		RecipientBalance: e.tracker.GetWalletBalance(cmd.RecipientID, ledger.AssetToken),
	}, nil
}

// MintCommand is a parsed supply-issuance request.
type MintCommand struct {
	MintID         uuid.UUID
	RecipientID    uuid.UUID
	Amount         int64
	SourceSequence int64
	Timestamp      time.Time
}

// MintReceipt reports the resulting balance and supply.
type MintReceipt struct {
	MintID           uuid.UUID
	Sequence         int64
	RecipientBalance int64
	TotalSupply      int64
	Duplicate        bool
}

// Mint issues new supply to a holder wallet through the mint boundary account.
func (e *Engine) Mint(cmd *MintCommand) (*MintReceipt, error) {
	start := time.Now()
	opType := event.EventTypeMintSettled.String()
	key := cmd.MintID.String()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.idempotency.IsDuplicate(opType, key) {
		if e.metrics != nil {
			e.metrics.EngineOpsRejected.WithLabelValues(opType, "duplicate").Inc()
		}
		return &MintReceipt{MintID: cmd.MintID, Duplicate: true}, nil
	}

	if cmd.Amount < 1 {
		e.reject(opType, "invalid_amount")
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, cmd.Amount)
	}

	// Supply caps every positive balance, so checking it also rules out
	// wraparound on the recipient wallet.
	if _, err := fpmath.CheckedAdd(e.tracker.TotalSupply(ledger.AssetToken), cmd.Amount); err != nil {
		e.reject(opType, "supply_overflow")
		return nil, fmt.Errorf("%w: minting %d would overflow supply", ErrInvalidAmount, cmd.Amount)
	}

	batch, err := e.journalGen.GenerateMint(cmd.MintID, cmd.RecipientID, cmd.Amount, cmd.Timestamp.UnixMicro())
	if err != nil {
		e.reject(opType, "generate")
		return nil, err
	}

	evt := &event.MintSettled{
		MintID:      cmd.MintID,
		RecipientID: cmd.RecipientID,
		Amount:      cmd.Amount,
		SourceSeq:   cmd.SourceSequence,
		Timestamp:   cmd.Timestamp,
	}

	seq := e.commit(evt, batch)
	e.recordApplied(opType, start)

	return &MintReceipt{
		MintID:           cmd.MintID,
		Sequence:         seq,
		RecipientBalance: e.tracker.GetWalletBalance(cmd.RecipientID, ledger.AssetToken),
		TotalSupply:      e.tracker.TotalSupply(ledger.AssetToken),
	}, nil
}

// commit validates, applies, hashes, and emits one operation. Must be called
// with the engine lock held. An unbalanced batch is unrecoverable: balances
// may already be torn, so the process halts rather than persist a partial
// apply.
func (e *Engine) commit(evt event.Event, batch *ledger.Batch) int64 {
	if len(batch.Journals) > 0 {
		if err := e.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: partial apply detected, unbalanced batch: %v", err))
		}

		if err := e.tracker.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: partial apply detected, batch rejected mid-commit: %v", err))
		}
	}

	stateDigest := e.computeStateDigest(batch)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: payload marshal failed: %v", err))
	}

	envelope := &event.EventEnvelope{
		Sequence:       e.sequence,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		Timestamp:      e.getEventTimestamp(evt),
		SourceSequence: evt.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	seq := e.sequence
	e.sequence++

	if err := e.checkPeriodicInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	output := Output{Envelope: envelope, Batch: batch, Event: evt}

	// Persistence: blocking send. The engine stalls until the persistence
	// worker drains, so no committed operation is ever lost.
	e.persistChan <- output

	// Projections: non-blocking send, drop on full. Projection workers
	// rebuild from the event log if they fall behind.
	select {
	case e.projectionChan <- output:
	default:
		if e.metrics != nil {
			e.metrics.ProjectionDrops.WithLabelValues("all").Inc()
		}
	}

	e.idempotency.MarkProcessed(evt.EventType().String(), evt.IdempotencyKey())

	if e.metrics != nil {
		e.metrics.EngineSequence.Set(float64(e.sequence))
		for _, j := range batch.Journals {
			e.metrics.EngineJournals.WithLabelValues(j.JournalType.String()).Inc()
		}
	}

	return seq
}

// getEventTimestamp extracts the versioned timestamp from an event. The engine
// never stamps committed state with wall-clock time; callers supply it.
func (e *Engine) getEventTimestamp(evt event.Event) time.Time {
	switch ev := evt.(type) {
	case *event.MintSettled:
		return ev.Timestamp
	case *event.TransferSettled:
		return ev.Timestamp
	case *event.ConversionStarted:
		return ev.Timestamp
	case *event.FeesConverted:
		return ev.Timestamp
	case *event.ConversionReverted:
		return ev.Timestamp
	case *event.RewardsDistributed:
		return ev.Timestamp
	case *event.LiquidityAdded:
		return ev.Timestamp
	default:
		panic(fmt.Sprintf("FATAL: getEventTimestamp called with unhandled event type %T", evt))
	}
}

// computeStateDigest creates canonical bytes for the state hash: every account
// the batch touched, sorted by path, with its post-apply balance.
func (e *Engine) computeStateDigest(batch *ledger.Batch) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := e.tracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		digest = appendInt64LE(digest, balance)
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// checkPeriodicInvariants runs the cheap pool checks on every commit and the
// full zero-sum scan every 1000 operations.
func (e *Engine) checkPeriodicInvariants() error {
	if err := e.validator.ValidatePoolsNonNegative(); err != nil {
		return err
	}

	if e.sequence > 0 && e.sequence%1000 == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("at seq %d: %w", e.sequence, err)
		}
		if err := e.validator.ValidateSupplyConservation(ledger.AssetToken); err != nil {
			return fmt.Errorf("at seq %d: %w", e.sequence, err)
		}
	}

	return nil
}

func (e *Engine) reject(opType, reason string) {
	if e.metrics != nil {
		e.metrics.EngineOpsRejected.WithLabelValues(opType, reason).Inc()
	}
}

func (e *Engine) recordApplied(opType string, start time.Time) {
	if e.metrics != nil {
		e.metrics.EngineOpsApplied.WithLabelValues(opType).Inc()
		e.metrics.EngineOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}

// === Read accessors (taken under the engine lock for consistency) ===

// HolderBalance returns a holder's wallet balance for an asset.
func (e *Engine) HolderBalance(holderID uuid.UUID, assetID ledger.AssetID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.GetWalletBalance(holderID, assetID)
}

// PoolStats is a consistent view of the system accounts and epoch state.
type PoolStats struct {
	FeePool            int64
	RewardsPending     int64
	Reserve            int64
	TotalSupply        int64
	LastDistribution   time.Time
	DistributionEpoch  int64
	ConversionInFlight bool
	Sequence           int64
}

// Stats captures all pool balances and epoch state atomically.
func (e *Engine) Stats() PoolStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return PoolStats{
		FeePool:            e.tracker.GetBalance(ledger.FeePoolKey()),
		RewardsPending:     e.tracker.GetBalance(ledger.RewardsPendingKey()),
		Reserve:            e.tracker.GetBalance(ledger.ReserveKey()),
		TotalSupply:        e.tracker.TotalSupply(ledger.AssetToken),
		LastDistribution:   e.rewardsPool.LastDistribution(),
		DistributionEpoch:  e.rewardsPool.Epoch(),
		ConversionInFlight: e.accumulator.InFlight(),
		Sequence:           e.sequence,
	}
}

// Sequence returns the next global sequence number.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}
