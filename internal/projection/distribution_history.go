package projection

import (
	"github.com/google/uuid"
)

// PayoutEntry represents one holder's credit in a distribution epoch
type PayoutEntry struct {
	HolderID  uuid.UUID
	EpochID   int64
	Balance   int64 // Snapshot balance backing the payout
	Payout    int64
	Timestamp int64
}

// DistributionHistoryProjection maintains queryable payout history
type DistributionHistoryProjection struct {
	entries []PayoutEntry
}

func NewDistributionHistoryProjection() *DistributionHistoryProjection {
	return &DistributionHistoryProjection{
		entries: make([]PayoutEntry, 0),
	}
}

// AddEntry records a payout
func (p *DistributionHistoryProjection) AddEntry(entry PayoutEntry) {
	p.entries = append(p.entries, entry)
}

// QueryByHolder returns payout history for a holder, newest first
func (p *DistributionHistoryProjection) QueryByHolder(holderID uuid.UUID, limit int) []PayoutEntry {
	result := make([]PayoutEntry, 0)

	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].HolderID == holderID {
			result = append(result, p.entries[i])
		}
	}

	return result
}

// QueryByEpoch returns every payout in one epoch
func (p *DistributionHistoryProjection) QueryByEpoch(epochID int64) []PayoutEntry {
	result := make([]PayoutEntry, 0)

	for _, e := range p.entries {
		if e.EpochID == epochID {
			result = append(result, e)
		}
	}

	return result
}
