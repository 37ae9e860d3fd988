package sale

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"saleledger/core/events"
	"saleledger/core/types"
	"saleledger/native/token"
)

// Engine is the sale ledger state machine. All operations are serialized:
// each one validates authorization and every gate before the first state
// write, so a failed operation leaves the ledger untouched. The one
// exception is a snapshot-persistence failure: the operation's transfers
// have already settled, so the error is returned without a result and the
// in-memory state stands until the next successful persist.
type Engine struct {
	mu        sync.Mutex
	state     *State
	saleToken token.Ledger
	assets    map[Asset]token.Ledger
	escrow    common.Address
	emitter   events.Emitter
	store     *Store
	nowFn     func() int64
}

// NewEngine constructs an engine over fresh state. The escrow address is the
// ledger's own identity on the external token ledgers; the sale token's
// inventory and pending bonuses are held there.
func NewEngine(params Params, saleToken token.Ledger, escrow common.Address) *Engine {
	return &Engine{
		state:     newState(params),
		saleToken: saleToken,
		assets:    make(map[Asset]token.Ledger),
		escrow:    escrow,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// RegisterAsset binds an accepted external asset symbol to its token ledger.
// The native coin needs no ledger.
func (e *Engine) RegisterAsset(asset Asset, ledger token.Ledger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assets[asset] = ledger
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetStore configures the persistence backend. The engine snapshots its
// state after every mutating operation.
func (e *Engine) SetStore(store *Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
}

// Restore replaces the engine state with a previously persisted snapshot.
func (e *Engine) Restore(st *State) error {
	if st == nil {
		return ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = st
	return nil
}

func (e *Engine) persist() error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(e.state); err != nil {
		return fmt.Errorf("sale: persist state: %w", err)
	}
	return nil
}

// Escrow returns the ledger's own address on the external token ledgers.
func (e *Engine) Escrow() common.Address { return e.escrow }

// TokenDecimals returns the sale token's decimal precision.
func (e *Engine) TokenDecimals() uint8 { return e.saleToken.Decimals() }

// Initialize pulls the caller's entire approved sale-token allowance into
// escrow, records it as the committed allocation and locks in the bonus
// schedule. Admin-only, runs at most once.
func (e *Engine) Initialize(caller common.Address, thresholdsCents []*big.Int, percents []uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if e.state.Initialized {
		return ErrAlreadyInitialized
	}
	tiers, err := NewTiers(thresholdsCents, percents)
	if err != nil {
		return err
	}
	allowance := e.saleToken.Allowance(caller, e.escrow)
	if allowance.Sign() > 0 {
		if err := e.saleToken.TransferFrom(e.escrow, caller, e.escrow, allowance); err != nil {
			return fmt.Errorf("%w: %v", ErrExternalTransfer, err)
		}
	}
	e.state.Tiers = tiers
	e.state.TotalAllocationCommitted = new(big.Int).Add(e.state.TotalAllocationCommitted, allowance)
	e.state.Initialized = true
	e.emitInitialized(caller, allowance)
	return e.persist()
}

// IncreaseAllocation pulls additional approved sale-token allowance into
// escrow. Admin-only, callable any time before finalization.
func (e *Engine) IncreaseAllocation(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if e.state.Finalized {
		return ErrAlreadyFinalized
	}
	allowance := e.saleToken.Allowance(caller, e.escrow)
	if allowance.Sign() <= 0 {
		return ErrInvalidValue
	}
	if err := e.saleToken.TransferFrom(e.escrow, caller, e.escrow, allowance); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalTransfer, err)
	}
	e.state.TotalAllocationCommitted = new(big.Int).Add(e.state.TotalAllocationCommitted, allowance)
	e.emitAllocationIncreased(caller, allowance)
	return e.persist()
}

func (e *Engine) assetPrice(asset Asset) (*big.Int, uint8, token.Ledger, error) {
	price, ok := e.state.AssetPricesCents[asset]
	if !ok || price == nil {
		return nil, 0, nil, ErrUnknownAsset
	}
	if asset == AssetNative {
		return price, NativeDecimals, nil, nil
	}
	ledger, ok := e.assets[asset]
	if !ok {
		return nil, 0, nil, ErrUnknownAsset
	}
	return price, ledger.Decimals(), ledger, nil
}

// Contribute processes a contribution in the given asset. Native
// contributions arrive with the value already attached; external assets are
// pulled from the contributor via transfer-from, which requires a prior
// approval. The base allocation transfers immediately, the bonus vests.
func (e *Engine) Contribute(caller common.Address, asset Asset, rawAmount *big.Int) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	if !st.Initialized {
		return nil, ErrNotInitialized
	}
	if st.Finalized {
		return nil, ErrOutsideSaleWindow
	}
	if !st.Whitelist[caller] {
		return nil, ErrNotWhitelisted
	}
	now := e.nowFn()
	if now < st.OpeningTime || now >= st.ClosingTime {
		return nil, ErrOutsideSaleWindow
	}
	if rawAmount == nil || rawAmount.Sign() <= 0 {
		return nil, ErrInvalidValue
	}
	price, decimals, ledger, err := e.assetPrice(asset)
	if err != nil {
		return nil, err
	}

	valueCents := ToCommonUnit(rawAmount, price, decimals)
	if valueCents.Cmp(st.MinContributionCents) < 0 {
		return nil, ErrBelowMinimum
	}
	allocation := TokensForCommonUnit(valueCents, st.TokenPriceCents, e.saleToken.Decimals())
	if allocation.Sign() <= 0 {
		return nil, ErrBelowMinimum
	}
	bonus := CalculateBonus(allocation, valueCents, st.Tiers)

	issued := new(big.Int).Add(allocation, bonus)
	sold := new(big.Int).Add(st.TotalTokensSold, issued)
	if sold.Cmp(st.TotalAllocationCommitted) > 0 {
		return nil, ErrInsufficientAlloc
	}

	if ledger != nil {
		if err := ledger.TransferFrom(e.escrow, caller, e.escrow, rawAmount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalTransfer, err)
		}
	}
	if err := e.saleToken.Transfer(e.escrow, caller, allocation); err != nil {
		if ledger != nil {
			// Return the pulled payment so the failed operation has no
			// observable effect.
			_ = ledger.Transfer(e.escrow, caller, rawAmount)
		}
		return nil, fmt.Errorf("%w: %v", ErrExternalTransfer, err)
	}

	st.TotalTokensSold = sold
	if bonus.Sign() > 0 {
		st.TotalBonusIssued = new(big.Int).Add(st.TotalBonusIssued, bonus)
		st.PendingBonus[caller] = new(big.Int).Add(st.pendingBonusOf(caller), bonus)
	}
	if ledger == nil {
		st.CollectedNative = new(big.Int).Add(st.CollectedNative, rawAmount)
	}

	rec := &Receipt{
		Contributor: caller,
		Asset:       asset,
		RawAmount:   new(big.Int).Set(rawAmount),
		ValueCents:  valueCents,
		Allocation:  allocation,
		Bonus:       bonus,
	}
	e.emitContribution(rec)
	if err := e.persist(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Engine) hasClosedLocked(now int64) bool {
	if now >= e.state.ClosingTime {
		return true
	}
	return e.state.TotalTokensSold.Cmp(e.state.TotalAllocationCommitted) >= 0
}

// HasClosed reports whether the sale window has elapsed or the committed
// inventory is fully sold.
func (e *Engine) HasClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasClosedLocked(e.nowFn())
}

// Finalize closes the sale and returns the escrowed sale-token balance,
// minus the reserve still owed to bonus holders, to the calling admin. It
// runs at most once and only after the sale has closed.
func (e *Engine) Finalize(caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if !e.state.Initialized {
		return ErrNotInitialized
	}
	if e.state.Finalized {
		return ErrAlreadyFinalized
	}
	if !e.hasClosedLocked(e.nowFn()) {
		return ErrNotClosed
	}
	reserved := e.state.unpaidBonusReserve()
	balance := e.saleToken.BalanceOf(e.escrow)
	returned := new(big.Int).Sub(balance, reserved)
	if returned.Sign() > 0 {
		if err := e.saleToken.Transfer(e.escrow, caller, returned); err != nil {
			return fmt.Errorf("%w: %v", ErrExternalTransfer, err)
		}
	} else {
		returned = big.NewInt(0)
	}
	e.state.Finalized = true
	e.emitFinalized(caller, returned, reserved)
	return e.persist()
}

// SetBonusReleaseDate configures the vesting release date. Admin-only and
// once-only: a second call fails regardless of arguments.
func (e *Engine) SetBonusReleaseDate(caller common.Address, release int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if e.state.BonusReleaseDate != 0 {
		return ErrReleaseAlreadySet
	}
	if release <= 0 {
		return ErrInvalidValue
	}
	e.state.BonusReleaseDate = release
	e.emitBonusReleaseSet(caller, release)
	return e.persist()
}

// WithdrawBonus pays the caller's vested bonus once the release date plus
// the configured lock period has elapsed, then zeroes the pending entry.
func (e *Engine) WithdrawBonus(caller common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	if st.BonusReleaseDate == 0 {
		return nil, ErrReleaseNotSet
	}
	if e.nowFn() < st.BonusReleaseDate+st.BonusLockSeconds {
		return nil, ErrTooEarly
	}
	pending := st.pendingBonusOf(caller)
	if pending.Sign() <= 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := e.saleToken.Transfer(e.escrow, caller, pending); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalTransfer, err)
	}
	amount := new(big.Int).Set(pending)
	delete(st.PendingBonus, caller)
	st.BonusPaidOut = new(big.Int).Add(st.BonusPaidOut, amount)
	e.emitBonusWithdrawn(caller, amount)
	if err := e.persist(); err != nil {
		return nil, err
	}
	return amount, nil
}

// WithdrawFunds sweeps collected native-asset payments to the calling admin.
func (e *Engine) WithdrawFunds(caller common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidValue
	}
	if amount.Cmp(e.state.CollectedNative) > 0 {
		return ErrInsufficientFunds
	}
	e.state.CollectedNative = new(big.Int).Sub(e.state.CollectedNative, amount)
	return e.persist()
}

// WithdrawToken sweeps the ledger's balance of an accepted external asset to
// the calling admin. The escrowed sale token is not sweepable here; unsold
// inventory only leaves through Finalize.
func (e *Engine) WithdrawToken(caller common.Address, asset Asset) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	ledger, ok := e.assets[asset]
	if !ok {
		return nil, ErrUnknownAsset
	}
	balance := ledger.BalanceOf(e.escrow)
	if balance.Sign() <= 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := ledger.Transfer(e.escrow, caller, balance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalTransfer, err)
	}
	return balance, nil
}

// SetSalePrice updates the sale-token unit price. Zero is rejected.
func (e *Engine) SetSalePrice(caller common.Address, priceCents *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if priceCents == nil || priceCents.Sign() <= 0 {
		return ErrInvalidValue
	}
	e.state.TokenPriceCents = new(big.Int).Set(priceCents)
	e.emitPriceUpdated(caller, saleTokenLabel, priceCents)
	return e.persist()
}

// SetAssetPrice updates the unit price of an accepted asset. Zero is
// rejected; contributions always price at the value current when processed.
func (e *Engine) SetAssetPrice(caller common.Address, asset Asset, priceCents *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if priceCents == nil || priceCents.Sign() <= 0 {
		return ErrInvalidValue
	}
	if _, ok := e.state.AssetPricesCents[asset]; !ok {
		return ErrUnknownAsset
	}
	e.state.AssetPricesCents[asset] = new(big.Int).Set(priceCents)
	e.emitPriceUpdated(caller, asset, priceCents)
	return e.persist()
}

// SetMinContribution updates the contribution floor. Zero is rejected.
func (e *Engine) SetMinContribution(caller common.Address, minCents *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if minCents == nil || minCents.Sign() <= 0 {
		return ErrInvalidValue
	}
	e.state.MinContributionCents = new(big.Int).Set(minCents)
	return e.persist()
}

// SetClosingTime moves the end of the sale window. Extension and shortening
// are both allowed.
func (e *Engine) SetClosingTime(caller common.Address, closing int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if closing <= 0 {
		return ErrInvalidValue
	}
	e.state.ClosingTime = closing
	return e.persist()
}

// Summary returns a copy of the aggregate counters and flags.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	return Summary{
		Owner:                    st.Owner,
		OpeningTime:              st.OpeningTime,
		ClosingTime:              st.ClosingTime,
		BonusReleaseDate:         st.BonusReleaseDate,
		BonusLockSeconds:         st.BonusLockSeconds,
		TokenPriceCents:          new(big.Int).Set(st.TokenPriceCents),
		MinContributionCents:     new(big.Int).Set(st.MinContributionCents),
		TotalAllocationCommitted: new(big.Int).Set(st.TotalAllocationCommitted),
		TotalTokensSold:          new(big.Int).Set(st.TotalTokensSold),
		TotalBonusIssued:         new(big.Int).Set(st.TotalBonusIssued),
		BonusPaidOut:             new(big.Int).Set(st.BonusPaidOut),
		CollectedNative:          new(big.Int).Set(st.CollectedNative),
		Initialized:              st.Initialized,
		Finalized:                st.Finalized,
	}
}

// PendingBonus returns the vested-but-unpaid bonus owed to the identifier.
func (e *Engine) PendingBonus(account common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.state.pendingBonusOf(account))
}

// AssetPrice returns the current unit price of an accepted asset.
func (e *Engine) AssetPrice(asset Asset) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.state.AssetPricesCents[asset]
	if !ok {
		return nil, ErrUnknownAsset
	}
	return new(big.Int).Set(price), nil
}

// Prices returns a copy of every configured asset price.
func (e *Engine) Prices() map[Asset]*big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[Asset]*big.Int, len(e.state.AssetPricesCents))
	for asset, price := range e.state.AssetPricesCents {
		out[asset] = new(big.Int).Set(price)
	}
	return out
}

// Tiers returns a copy of the bonus schedule.
func (e *Engine) Tiers() []BonusTier {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]BonusTier, len(e.state.Tiers))
	for i, tier := range e.state.Tiers {
		out[i] = BonusTier{
			ThresholdCents: new(big.Int).Set(tier.ThresholdCents),
			Percent:        tier.Percent,
		}
	}
	return out
}

// Events returns copies of the recorded ledger events in order.
func (e *Engine) Events() []types.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Event, len(e.state.Events))
	for i := range e.state.Events {
		out[i] = e.state.Events[i].Copy()
	}
	return out
}
