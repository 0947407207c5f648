package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeHolder AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Holder sub-types
	SubTypeWallet AccountSubType = iota

	// System sub-types
	SubTypeSystemFeePool
	SubTypeSystemRewardsPending
	SubTypeSystemReserve

	// External boundary sub-types
	SubTypeExternalMint
	SubTypeExternalSwap
	SubTypeExternalLiquidity
)

// AssetID maps asset symbols to numeric IDs for performance
type AssetID uint16

const (
	// AssetToken is the fungible unit being transferred; fees are withheld from it.
	AssetToken AssetID = 1
	// AssetWBTC is the settlement asset collected fees are converted into (8 decimals).
	AssetWBTC AssetID = 2
)

var (
	assetToID = map[string]AssetID{
		"TOKEN": AssetToken,
		"WBTC":  AssetWBTC,
	}
	idToAsset = map[AssetID]string{
		AssetToken: "TOKEN",
		AssetWBTC:  "WBTC",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (20 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for holders, zero for system/external accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewHolderAccountKey creates a key for a holder wallet
func NewHolderAccountKey(holderID uuid.UUID, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeHolder,
		EntityID: holderID,
		SubType:  SubTypeWallet,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts (fee pool, rewards pending, reserve)
func NewSystemAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeSystem,
		SubType: subType,
		AssetID: assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// FeePoolKey returns the system account holding undistributed fee-asset.
func FeePoolKey() AccountKey {
	return NewSystemAccountKey(SubTypeSystemFeePool, AssetToken)
}

// RewardsPendingKey returns the system account holding settlement asset awaiting distribution.
func RewardsPendingKey() AccountKey {
	return NewSystemAccountKey(SubTypeSystemRewardsPending, AssetWBTC)
}

// ReserveKey returns the system account accumulating the reserve-side settlement asset.
func ReserveKey() AccountKey {
	return NewSystemAccountKey(SubTypeSystemReserve, AssetWBTC)
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeHolder:
		hid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("holder:%s:%s:%s", hid.String(), k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeWallet:
		return "wallet"
	case SubTypeSystemFeePool:
		return "fee_pool"
	case SubTypeSystemRewardsPending:
		return "rewards_pending"
	case SubTypeSystemReserve:
		return "reserve"
	case SubTypeExternalMint:
		return "mint"
	case SubTypeExternalSwap:
		return "swap"
	case SubTypeExternalLiquidity:
		return "liquidity"
	default:
		return "unknown"
	}
}

// ParseAccountPath reconstructs an AccountKey from its path form.
// Used when restoring balances from a persisted snapshot.
func ParseAccountPath(path string) AccountKey {
	parts := strings.Split(path, ":")

	var key AccountKey
	switch parts[0] {
	case "holder":
		if len(parts) != 4 {
			return key
		}
		hid, err := uuid.Parse(parts[1])
		if err != nil {
			return key
		}
		key = NewHolderAccountKey(hid, parseAsset(parts[3]))
	case "system":
		if len(parts) != 3 {
			return key
		}
		key = NewSystemAccountKey(parseSubType(parts[1]), parseAsset(parts[2]))
	case "external":
		if len(parts) != 3 {
			return key
		}
		key = NewExternalAccountKey(parseSubType(parts[1]), parseAsset(parts[2]))
	}
	return key
}

func parseAsset(name string) AssetID {
	id, _ := GetAssetID(name)
	return id
}

func parseSubType(name string) AccountSubType {
	switch name {
	case "wallet":
		return SubTypeWallet
	case "fee_pool":
		return SubTypeSystemFeePool
	case "rewards_pending":
		return SubTypeSystemRewardsPending
	case "reserve":
		return SubTypeSystemReserve
	case "mint":
		return SubTypeExternalMint
	case "swap":
		return SubTypeExternalSwap
	case "liquidity":
		return SubTypeExternalLiquidity
	}
	return SubTypeWallet
}
