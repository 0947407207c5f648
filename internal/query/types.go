package query

import "github.com/google/uuid"

// BalanceResponse represents holder balance state for API queries.
type BalanceResponse struct {
	HolderID uuid.UUID `json:"holder_id"`

	// Ledger balances (from journal entries)
	TokenBalance int64 `json:"token_balance"`
	WBTCBalance  int64 `json:"wbtc_balance"`

	// Metadata
	AsOfSequence int64 `json:"as_of_sequence"` // last applied event sequence
}

// PoolStatsResponse reports the system account balances.
type PoolStatsResponse struct {
	FeePool        int64 `json:"fee_pool"`        // accumulated TOKEN fees
	RewardsPending int64 `json:"rewards_pending"` // converted WBTC awaiting distribution
	Reserve        int64 `json:"reserve"`         // WBTC reserved for liquidity
	AsOfSequence   int64 `json:"as_of_sequence"`
}

// DistributionResponse represents one distribution epoch for API queries.
type DistributionResponse struct {
	EpochID       int64 `json:"epoch_id"`
	Pending       int64 `json:"pending"`
	HolderShare   int64 `json:"holder_share"`
	ReserveShare  int64 `json:"reserve_share"`
	Residual      int64 `json:"residual"`
	TotalSupply   int64 `json:"total_supply"`
	HolderCount   int   `json:"holder_count"`
	Sequence      int64 `json:"sequence"`
	DistributedAt int64 `json:"distributed_at_us"`
	AsOfSequence  int64 `json:"as_of_sequence"`
}

// PayoutResponse represents one holder's credit in a distribution epoch.
type PayoutResponse struct {
	HolderID     uuid.UUID `json:"holder_id"`
	EpochID      int64     `json:"epoch_id"`
	Balance      int64     `json:"balance"` // snapshot balance backing the payout
	Payout       int64     `json:"payout"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// ConversionResponse represents a fee conversion for API queries.
type ConversionResponse struct {
	ConversionID  string `json:"conversion_id"`
	TokenAmount   int64  `json:"token_amount"`
	SettledAmount *int64 `json:"settled_amount,omitempty"`
	GatewayRef    string `json:"gateway_ref,omitempty"`
	Status        string `json:"status"` // started, settled, reverted
	Sequence      int64  `json:"sequence"`
}

// LiquidityAddResponse represents a confirmed liquidity provision.
type LiquidityAddResponse struct {
	ProvisionID string `json:"provision_id"`
	Amount      int64  `json:"amount"`
	VenueRef    string `json:"venue_ref"`
	Sequence    int64  `json:"sequence"`
	AddedAt     int64  `json:"added_at_us"`
}

// JournalHistoryEntry represents a journal entry for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset with non-zero global balance sum.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
