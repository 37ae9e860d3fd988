package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must be positive")
)

// Ledger is the external fungible-token collaborator consumed by the sale
// engine. Transfers are synchronous; a returned error means the operation had
// no effect. The from/spender arguments are explicit because the ledger has
// no ambient caller identity.
type Ledger interface {
	BalanceOf(addr common.Address) *big.Int
	Decimals() uint8
	Transfer(from, to common.Address, amount *big.Int) error
	Approve(owner, spender common.Address, amount *big.Int) error
	Allowance(owner, spender common.Address) *big.Int
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// MemLedger is an in-memory Ledger used by tests and the daemon's dev mode.
// It mirrors the balance/allowance semantics of a standard fungible token.
type MemLedger struct {
	mu         sync.Mutex
	symbol     string
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewMemLedger creates an empty ledger for the given symbol and decimal
// precision.
func NewMemLedger(symbol string, decimals uint8) *MemLedger {
	return &MemLedger{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Symbol returns the token symbol the ledger was created with.
func (l *MemLedger) Symbol() string { return l.symbol }

// Decimals returns the token's decimal precision.
func (l *MemLedger) Decimals() uint8 { return l.decimals }

// Mint credits the address with new supply. Test and dev-mode helper.
func (l *MemLedger) Mint(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Add(l.balanceLocked(addr), amount)
}

func (l *MemLedger) balanceLocked(addr common.Address) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (l *MemLedger) BalanceOf(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(addr))
}

func (l *MemLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.moveLocked(from, to, amount)
}

func (l *MemLedger) moveLocked(from, to common.Address, amount *big.Int) error {
	bal := l.balanceLocked(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(big.Int).Sub(bal, amount)
	l.balances[to] = new(big.Int).Add(l.balanceLocked(to), amount)
	return nil
}

func (l *MemLedger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

func (l *MemLedger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowanceLocked(owner, spender))
}

func (l *MemLedger) allowanceLocked(owner, spender common.Address) *big.Int {
	if spenders, ok := l.allowances[owner]; ok {
		if amt, ok := spenders[spender]; ok {
			return amt
		}
	}
	return big.NewInt(0)
}

func (l *MemLedger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	allowed := l.allowanceLocked(from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.moveLocked(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}
