package sale

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"saleledger/core/types"
)

// Asset identifies an accepted contribution asset by symbol. The accepted set
// is configuration data, not code: the distinguished native coin plus any
// number of external tokens.
type Asset string

// AssetNative is the chain's own coin. Native contributions arrive as an
// attached value rather than a pulled transfer.
const AssetNative Asset = "NATIVE"

// NativeDecimals is the fractional precision of the native coin.
const NativeDecimals uint8 = 18

// saleTokenLabel identifies the sale token itself in price-updated events,
// distinguishing it from accepted contribution assets.
const saleTokenLabel Asset = "SALE_TOKEN"

// BonusTier grants Percent extra allocation to contributions whose
// common-unit value reaches ThresholdCents.
type BonusTier struct {
	ThresholdCents *big.Int
	Percent        uint8
}

// Params carries the construction-time configuration of a sale: the window,
// the pricing, the contribution floor and the vesting lock.
type Params struct {
	Owner                common.Address
	OpeningTime          int64
	ClosingTime          int64
	TokenPriceCents      *big.Int
	AssetPricesCents     map[Asset]*big.Int
	MinContributionCents *big.Int
	BonusLockSeconds     int64
}

// State is the aggregate sale ledger. It is exclusively owned by the engine;
// every mutation happens inside a serialized engine operation.
type State struct {
	Owner     common.Address
	Admins    map[common.Address]bool
	Whitelist map[common.Address]bool

	TokenPriceCents      *big.Int
	AssetPricesCents     map[Asset]*big.Int
	MinContributionCents *big.Int

	OpeningTime      int64
	ClosingTime      int64
	BonusReleaseDate int64
	BonusLockSeconds int64

	Tiers []BonusTier

	TotalAllocationCommitted *big.Int
	TotalTokensSold          *big.Int
	TotalBonusIssued         *big.Int
	BonusPaidOut             *big.Int
	CollectedNative          *big.Int

	PendingBonus map[common.Address]*big.Int

	Initialized bool
	Finalized   bool

	Events []types.Event
}

func newState(p Params) *State {
	st := &State{
		Owner:                    p.Owner,
		Admins:                   make(map[common.Address]bool),
		Whitelist:                make(map[common.Address]bool),
		TokenPriceCents:          bigOrZero(p.TokenPriceCents),
		AssetPricesCents:         make(map[Asset]*big.Int, len(p.AssetPricesCents)),
		MinContributionCents:     bigOrZero(p.MinContributionCents),
		OpeningTime:              p.OpeningTime,
		ClosingTime:              p.ClosingTime,
		BonusLockSeconds:         p.BonusLockSeconds,
		TotalAllocationCommitted: big.NewInt(0),
		TotalTokensSold:          big.NewInt(0),
		TotalBonusIssued:         big.NewInt(0),
		BonusPaidOut:             big.NewInt(0),
		CollectedNative:          big.NewInt(0),
		PendingBonus:             make(map[common.Address]*big.Int),
	}
	for asset, price := range p.AssetPricesCents {
		st.AssetPricesCents[asset] = bigOrZero(price)
	}
	return st
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (s *State) isAdmin(addr common.Address) bool {
	return addr == s.Owner || s.Admins[addr]
}

func (s *State) pendingBonusOf(addr common.Address) *big.Int {
	if amt, ok := s.PendingBonus[addr]; ok {
		return amt
	}
	return big.NewInt(0)
}

// unpaidBonusReserve is the escrowed amount still owed to contributors.
func (s *State) unpaidBonusReserve() *big.Int {
	return new(big.Int).Sub(s.TotalBonusIssued, s.BonusPaidOut)
}

func (s *State) appendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	s.Events = append(s.Events, evt.Copy())
}

// Receipt summarizes an accepted contribution.
type Receipt struct {
	Contributor common.Address
	Asset       Asset
	RawAmount   *big.Int
	ValueCents  *big.Int
	Allocation  *big.Int
	Bonus       *big.Int
}

// Summary is a read-only snapshot of the aggregate sale counters.
type Summary struct {
	Owner                    common.Address
	OpeningTime              int64
	ClosingTime              int64
	BonusReleaseDate         int64
	BonusLockSeconds         int64
	TokenPriceCents          *big.Int
	MinContributionCents     *big.Int
	TotalAllocationCommitted *big.Int
	TotalTokensSold          *big.Int
	TotalBonusIssued         *big.Int
	BonusPaidOut             *big.Int
	CollectedNative          *big.Int
	Initialized              bool
	Finalized                bool
}
