package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeSaleInitialized is emitted when the sale escrow is funded and the
	// bonus schedule is locked in.
	TypeSaleInitialized = "sale.initialized"
	// TypeSaleAllocationIncreased is emitted when additional sale-token
	// inventory is pulled into escrow.
	TypeSaleAllocationIncreased = "sale.allocation.increased"
	// TypeSaleContributionRecorded is emitted for every accepted
	// contribution.
	TypeSaleContributionRecorded = "sale.contribution.recorded"
	// TypeSalePriceUpdated is emitted when an administrator changes a unit
	// price.
	TypeSalePriceUpdated = "sale.price.updated"
	// TypeSaleWhitelistUpdated is emitted when an identifier is admitted to
	// or removed from the whitelist.
	TypeSaleWhitelistUpdated = "sale.whitelist.updated"
	// TypeSaleAdminUpdated is emitted when the owner grants or revokes an
	// administrator role.
	TypeSaleAdminUpdated = "sale.admin.updated"
	// TypeSaleFinalized is emitted exactly once when the sale is closed out
	// and unsold inventory is swept.
	TypeSaleFinalized = "sale.finalized"
	// TypeSaleBonusReleaseSet is emitted when the bonus release date is
	// configured.
	TypeSaleBonusReleaseSet = "sale.bonus.release_set"
	// TypeSaleBonusWithdrawn is emitted when a contributor claims a vested
	// bonus.
	TypeSaleBonusWithdrawn = "sale.bonus.withdrawn"
)

// SaleInitialized captures the escrow funding that opens the sale.
type SaleInitialized struct {
	Caller    common.Address
	Committed *big.Int
	Tiers     int
}

// EventType implements the Event interface.
func (SaleInitialized) EventType() string { return TypeSaleInitialized }

// SaleAllocationIncreased captures a top-up of the escrowed inventory.
type SaleAllocationIncreased struct {
	Caller    common.Address
	Pulled    *big.Int
	Committed *big.Int
}

// EventType implements the Event interface.
func (SaleAllocationIncreased) EventType() string { return TypeSaleAllocationIncreased }

// SaleContributionRecorded captures an accepted contribution along with the
// derived allocation and bonus amounts.
type SaleContributionRecorded struct {
	Contributor common.Address
	Asset       string
	RawAmount   *big.Int
	ValueCents  *big.Int
	Allocation  *big.Int
	Bonus       *big.Int
}

// EventType implements the Event interface.
func (SaleContributionRecorded) EventType() string { return TypeSaleContributionRecorded }

// SalePriceUpdated captures an administrator price change.
type SalePriceUpdated struct {
	Caller common.Address
	Asset  string
	Price  *big.Int
}

// EventType implements the Event interface.
func (SalePriceUpdated) EventType() string { return TypeSalePriceUpdated }

// SaleWhitelistUpdated captures a single admission-set change.
type SaleWhitelistUpdated struct {
	Caller   common.Address
	Account  common.Address
	Admitted bool
}

// EventType implements the Event interface.
func (SaleWhitelistUpdated) EventType() string { return TypeSaleWhitelistUpdated }

// SaleAdminUpdated captures a role grant or revocation by the owner.
type SaleAdminUpdated struct {
	Owner   common.Address
	Account common.Address
	Granted bool
}

// EventType implements the Event interface.
func (SaleAdminUpdated) EventType() string { return TypeSaleAdminUpdated }

// SaleFinalized captures the closing sweep of unsold, unreserved inventory.
type SaleFinalized struct {
	Caller   common.Address
	Returned *big.Int
	Reserved *big.Int
}

// EventType implements the Event interface.
func (SaleFinalized) EventType() string { return TypeSaleFinalized }

// SaleBonusReleaseSet captures the one-time configuration of the bonus
// release date.
type SaleBonusReleaseSet struct {
	Caller  common.Address
	Release int64
}

// EventType implements the Event interface.
func (SaleBonusReleaseSet) EventType() string { return TypeSaleBonusReleaseSet }

// SaleBonusWithdrawn captures a vested bonus payout.
type SaleBonusWithdrawn struct {
	Contributor common.Address
	Amount      *big.Int
}

// EventType implements the Event interface.
func (SaleBonusWithdrawn) EventType() string { return TypeSaleBonusWithdrawn }
