package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"saleledger/storage"
)

// Store snapshots one ledger's balances and allowances under a per-symbol
// key, so in-process token state survives a daemon restart the same way the
// sale state does. Amounts are encoded as decimal strings.
type Store struct {
	db  storage.Database
	key []byte
}

// NewStore wraps the given database for the ledger identified by symbol.
func NewStore(db storage.Database, symbol string) *Store {
	return &Store{db: db, key: []byte("token/ledger/" + symbol)}
}

type ledgerSnapshot struct {
	Symbol     string                       `json:"symbol"`
	Decimals   uint8                        `json:"decimals"`
	Balances   map[string]string            `json:"balances"`
	Allowances map[string]map[string]string `json:"allowances"`
}

// Save serializes the ledger and writes it under its symbol key.
func (s *Store) Save(l *MemLedger) error {
	l.mu.Lock()
	snap := ledgerSnapshot{
		Symbol:     l.symbol,
		Decimals:   l.decimals,
		Balances:   make(map[string]string, len(l.balances)),
		Allowances: make(map[string]map[string]string, len(l.allowances)),
	}
	for addr, bal := range l.balances {
		snap.Balances[addr.Hex()] = bal.String()
	}
	for owner, spenders := range l.allowances {
		entry := make(map[string]string, len(spenders))
		for spender, amount := range spenders {
			entry[spender.Hex()] = amount.String()
		}
		snap.Allowances[owner.Hex()] = entry
	}
	l.mu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("token: encode ledger %s: %w", snap.Symbol, err)
	}
	return s.db.Put(s.key, raw)
}

// Load reads the persisted ledger. The second return value reports whether a
// snapshot existed.
func (s *Store) Load() (*MemLedger, bool, error) {
	raw, err := s.db.Get(s.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var snap ledgerSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("token: decode ledger: %w", err)
	}
	ledger := NewMemLedger(snap.Symbol, snap.Decimals)
	for addr, bal := range snap.Balances {
		amount, err := parseLedgerAmount(bal)
		if err != nil {
			return nil, false, err
		}
		ledger.balances[common.HexToAddress(addr)] = amount
	}
	for owner, spenders := range snap.Allowances {
		entry := make(map[common.Address]*big.Int, len(spenders))
		for spender, allowed := range spenders {
			amount, err := parseLedgerAmount(allowed)
			if err != nil {
				return nil, false, err
			}
			entry[common.HexToAddress(spender)] = amount
		}
		ledger.allowances[common.HexToAddress(owner)] = entry
	}
	return ledger, true, nil
}

func parseLedgerAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("token: malformed amount %q in snapshot", s)
	}
	return amount, nil
}

// PersistentLedger couples a MemLedger with a Store: every mutation snapshots
// the ledger, so balances and allowances stay consistent with the sale state
// persisted in the same database.
type PersistentLedger struct {
	*MemLedger
	store *Store
}

// NewPersistentLedger opens the persisted ledger for the symbol, creating an
// empty one when no snapshot exists yet.
func NewPersistentLedger(db storage.Database, symbol string, decimals uint8) (*PersistentLedger, error) {
	store := NewStore(db, symbol)
	ledger, found, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !found {
		ledger = NewMemLedger(symbol, decimals)
	}
	return &PersistentLedger{MemLedger: ledger, store: store}, nil
}

// Mint credits new supply and persists the ledger.
func (p *PersistentLedger) Mint(addr common.Address, amount *big.Int) error {
	p.MemLedger.Mint(addr, amount)
	return p.store.Save(p.MemLedger)
}

func (p *PersistentLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := p.MemLedger.Transfer(from, to, amount); err != nil {
		return err
	}
	return p.store.Save(p.MemLedger)
}

func (p *PersistentLedger) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := p.MemLedger.Approve(owner, spender, amount); err != nil {
		return err
	}
	return p.store.Save(p.MemLedger)
}

func (p *PersistentLedger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := p.MemLedger.TransferFrom(spender, from, to, amount); err != nil {
		return err
	}
	return p.store.Save(p.MemLedger)
}
