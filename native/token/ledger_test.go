package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	holder  = common.HexToAddress("0x01")
	spender = common.HexToAddress("0x02")
	sink    = common.HexToAddress("0x03")
)

func TestMintAndBalance(t *testing.T) {
	ledger := NewMemLedger("SALE", 18)
	if ledger.Symbol() != "SALE" || ledger.Decimals() != 18 {
		t.Fatalf("symbol/decimals = %s/%d", ledger.Symbol(), ledger.Decimals())
	}
	ledger.Mint(holder, big.NewInt(100))
	ledger.Mint(holder, big.NewInt(50))
	if got := ledger.BalanceOf(holder); got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("balance = %s", got)
	}
	if got := ledger.BalanceOf(sink); got.Sign() != 0 {
		t.Fatalf("unfunded balance = %s", got)
	}
}

func TestTransfer(t *testing.T) {
	ledger := NewMemLedger("SALE", 18)
	ledger.Mint(holder, big.NewInt(100))

	if err := ledger.Transfer(holder, sink, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := ledger.BalanceOf(holder); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("holder balance = %s", got)
	}
	if got := ledger.BalanceOf(sink); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("sink balance = %s", got)
	}

	if err := ledger.Transfer(holder, sink, big.NewInt(1000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Transfer(holder, sink, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ledger.Transfer(holder, sink, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	ledger := NewMemLedger("BNB", 18)
	ledger.Mint(holder, big.NewInt(100))

	if err := ledger.TransferFrom(spender, holder, sink, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := ledger.Approve(holder, spender, big.NewInt(60)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := ledger.Allowance(holder, spender); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("allowance = %s", got)
	}

	if err := ledger.TransferFrom(spender, holder, sink, big.NewInt(40)); err != nil {
		t.Fatalf("transfer-from: %v", err)
	}
	if got := ledger.Allowance(holder, spender); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("remaining allowance = %s", got)
	}
	if got := ledger.BalanceOf(sink); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("sink balance = %s", got)
	}

	if err := ledger.TransferFrom(spender, holder, sink, big.NewInt(30)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance after spend, got %v", err)
	}
}

func TestApproveOverwrites(t *testing.T) {
	ledger := NewMemLedger("BNB", 18)
	if err := ledger.Approve(holder, spender, big.NewInt(60)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Approve(holder, spender, big.NewInt(5)); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if got := ledger.Allowance(holder, spender); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("allowance = %s", got)
	}
	// Zero clears, negative is rejected.
	if err := ledger.Approve(holder, spender, big.NewInt(0)); err != nil {
		t.Fatalf("zero approve: %v", err)
	}
	if err := ledger.Approve(holder, spender, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferFromRespectsBalance(t *testing.T) {
	ledger := NewMemLedger("BNB", 18)
	ledger.Mint(holder, big.NewInt(10))
	if err := ledger.Approve(holder, spender, big.NewInt(100)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(spender, holder, sink, big.NewInt(50)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	// The failed move must not burn allowance.
	if got := ledger.Allowance(holder, spender); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("allowance = %s", got)
	}
}
