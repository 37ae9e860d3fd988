package sale

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"saleledger/core/types"
	"saleledger/storage"
)

var stateKey = []byte("sale/state")

// Store snapshots the sale state into a key-value database so the ledger
// survives restarts. Amounts are encoded as decimal strings to keep the
// snapshot precision-exact.
type Store struct {
	db storage.Database
}

// NewStore wraps the given database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

type tierSnapshot struct {
	ThresholdCents string `json:"thresholdCents"`
	Percent        uint8  `json:"percent"`
}

type stateSnapshot struct {
	Owner                    string            `json:"owner"`
	Admins                   []string          `json:"admins"`
	Whitelist                []string          `json:"whitelist"`
	TokenPriceCents          string            `json:"tokenPriceCents"`
	AssetPricesCents         map[string]string `json:"assetPricesCents"`
	MinContributionCents     string            `json:"minContributionCents"`
	OpeningTime              int64             `json:"openingTime"`
	ClosingTime              int64             `json:"closingTime"`
	BonusReleaseDate         int64             `json:"bonusReleaseDate"`
	BonusLockSeconds         int64             `json:"bonusLockSeconds"`
	Tiers                    []tierSnapshot    `json:"tiers"`
	TotalAllocationCommitted string            `json:"totalAllocationCommitted"`
	TotalTokensSold          string            `json:"totalTokensSold"`
	TotalBonusIssued         string            `json:"totalBonusIssued"`
	BonusPaidOut             string            `json:"bonusPaidOut"`
	CollectedNative          string            `json:"collectedNative"`
	PendingBonus             map[string]string `json:"pendingBonus"`
	Initialized              bool              `json:"initialized"`
	Finalized                bool              `json:"finalized"`
	Events                   []eventSnapshot   `json:"events"`
}

type eventSnapshot struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Save serializes the state and writes it under the sale state key.
func (s *Store) Save(st *State) error {
	if st == nil {
		return ErrNilState
	}
	snap := stateSnapshot{
		Owner:                    st.Owner.Hex(),
		TokenPriceCents:          st.TokenPriceCents.String(),
		AssetPricesCents:         make(map[string]string, len(st.AssetPricesCents)),
		MinContributionCents:     st.MinContributionCents.String(),
		OpeningTime:              st.OpeningTime,
		ClosingTime:              st.ClosingTime,
		BonusReleaseDate:         st.BonusReleaseDate,
		BonusLockSeconds:         st.BonusLockSeconds,
		TotalAllocationCommitted: st.TotalAllocationCommitted.String(),
		TotalTokensSold:          st.TotalTokensSold.String(),
		TotalBonusIssued:         st.TotalBonusIssued.String(),
		BonusPaidOut:             st.BonusPaidOut.String(),
		CollectedNative:          st.CollectedNative.String(),
		PendingBonus:             make(map[string]string, len(st.PendingBonus)),
		Initialized:              st.Initialized,
		Finalized:                st.Finalized,
	}
	for addr := range st.Admins {
		snap.Admins = append(snap.Admins, addr.Hex())
	}
	for addr := range st.Whitelist {
		snap.Whitelist = append(snap.Whitelist, addr.Hex())
	}
	for asset, price := range st.AssetPricesCents {
		snap.AssetPricesCents[string(asset)] = price.String()
	}
	for _, tier := range st.Tiers {
		snap.Tiers = append(snap.Tiers, tierSnapshot{
			ThresholdCents: tier.ThresholdCents.String(),
			Percent:        tier.Percent,
		})
	}
	for addr, amount := range st.PendingBonus {
		snap.PendingBonus[addr.Hex()] = amount.String()
	}
	for _, evt := range st.Events {
		snap.Events = append(snap.Events, eventSnapshot{Type: evt.Type, Attributes: evt.Attributes})
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sale: encode state: %w", err)
	}
	return s.db.Put(stateKey, raw)
}

// Load reads the persisted state. The second return value reports whether a
// snapshot existed.
func (s *Store) Load() (*State, bool, error) {
	raw, err := s.db.Get(stateKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var snap stateSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("sale: decode state: %w", err)
	}
	st := &State{
		Owner:            common.HexToAddress(snap.Owner),
		Admins:           make(map[common.Address]bool, len(snap.Admins)),
		Whitelist:        make(map[common.Address]bool, len(snap.Whitelist)),
		AssetPricesCents: make(map[Asset]*big.Int, len(snap.AssetPricesCents)),
		OpeningTime:      snap.OpeningTime,
		ClosingTime:      snap.ClosingTime,
		BonusReleaseDate: snap.BonusReleaseDate,
		BonusLockSeconds: snap.BonusLockSeconds,
		PendingBonus:     make(map[common.Address]*big.Int, len(snap.PendingBonus)),
		Initialized:      snap.Initialized,
		Finalized:        snap.Finalized,
	}
	if st.TokenPriceCents, err = parseAmount(snap.TokenPriceCents); err != nil {
		return nil, false, err
	}
	if st.MinContributionCents, err = parseAmount(snap.MinContributionCents); err != nil {
		return nil, false, err
	}
	if st.TotalAllocationCommitted, err = parseAmount(snap.TotalAllocationCommitted); err != nil {
		return nil, false, err
	}
	if st.TotalTokensSold, err = parseAmount(snap.TotalTokensSold); err != nil {
		return nil, false, err
	}
	if st.TotalBonusIssued, err = parseAmount(snap.TotalBonusIssued); err != nil {
		return nil, false, err
	}
	if st.BonusPaidOut, err = parseAmount(snap.BonusPaidOut); err != nil {
		return nil, false, err
	}
	if st.CollectedNative, err = parseAmount(snap.CollectedNative); err != nil {
		return nil, false, err
	}
	for _, addr := range snap.Admins {
		st.Admins[common.HexToAddress(addr)] = true
	}
	for _, addr := range snap.Whitelist {
		st.Whitelist[common.HexToAddress(addr)] = true
	}
	for asset, price := range snap.AssetPricesCents {
		amount, err := parseAmount(price)
		if err != nil {
			return nil, false, err
		}
		st.AssetPricesCents[Asset(asset)] = amount
	}
	for _, tier := range snap.Tiers {
		threshold, err := parseAmount(tier.ThresholdCents)
		if err != nil {
			return nil, false, err
		}
		st.Tiers = append(st.Tiers, BonusTier{ThresholdCents: threshold, Percent: tier.Percent})
	}
	for addr, amount := range snap.PendingBonus {
		pending, err := parseAmount(amount)
		if err != nil {
			return nil, false, err
		}
		st.PendingBonus[common.HexToAddress(addr)] = pending
	}
	for _, evt := range snap.Events {
		st.Events = append(st.Events, types.Event{Type: evt.Type, Attributes: evt.Attributes})
	}
	return st, true, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("sale: malformed amount %q in snapshot", s)
	}
	return amount, nil
}
