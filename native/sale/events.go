package sale

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"saleledger/core/events"
	"saleledger/core/types"
)

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (e *Engine) emit(evt events.Event, record *types.Event) {
	if record != nil {
		e.state.appendEvent(record)
	}
	if e.emitter != nil && evt != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) emitContribution(rec *Receipt) {
	e.emit(events.SaleContributionRecorded{
		Contributor: rec.Contributor,
		Asset:       string(rec.Asset),
		RawAmount:   new(big.Int).Set(rec.RawAmount),
		ValueCents:  new(big.Int).Set(rec.ValueCents),
		Allocation:  new(big.Int).Set(rec.Allocation),
		Bonus:       new(big.Int).Set(rec.Bonus),
	}, &types.Event{
		Type: events.TypeSaleContributionRecorded,
		Attributes: map[string]string{
			"contributor": rec.Contributor.Hex(),
			"asset":       string(rec.Asset),
			"rawAmount":   amountAttr(rec.RawAmount),
			"valueCents":  amountAttr(rec.ValueCents),
			"allocation":  amountAttr(rec.Allocation),
			"bonus":       amountAttr(rec.Bonus),
		},
	})
}

func (e *Engine) emitPriceUpdated(caller common.Address, asset Asset, price *big.Int) {
	e.emit(events.SalePriceUpdated{
		Caller: caller,
		Asset:  string(asset),
		Price:  new(big.Int).Set(price),
	}, &types.Event{
		Type: events.TypeSalePriceUpdated,
		Attributes: map[string]string{
			"caller": caller.Hex(),
			"asset":  string(asset),
			"price":  amountAttr(price),
		},
	})
}

func (e *Engine) emitWhitelistUpdated(caller, account common.Address, admitted bool) {
	e.emit(events.SaleWhitelistUpdated{
		Caller:   caller,
		Account:  account,
		Admitted: admitted,
	}, &types.Event{
		Type: events.TypeSaleWhitelistUpdated,
		Attributes: map[string]string{
			"caller":   caller.Hex(),
			"account":  account.Hex(),
			"admitted": strconv.FormatBool(admitted),
		},
	})
}

func (e *Engine) emitAdminUpdated(account common.Address, granted bool) {
	e.emit(events.SaleAdminUpdated{
		Owner:   e.state.Owner,
		Account: account,
		Granted: granted,
	}, &types.Event{
		Type: events.TypeSaleAdminUpdated,
		Attributes: map[string]string{
			"owner":   e.state.Owner.Hex(),
			"account": account.Hex(),
			"granted": strconv.FormatBool(granted),
		},
	})
}

func (e *Engine) emitInitialized(caller common.Address, committed *big.Int) {
	e.emit(events.SaleInitialized{
		Caller:    caller,
		Committed: new(big.Int).Set(committed),
		Tiers:     len(e.state.Tiers),
	}, &types.Event{
		Type: events.TypeSaleInitialized,
		Attributes: map[string]string{
			"caller":    caller.Hex(),
			"committed": amountAttr(committed),
			"tiers":     strconv.Itoa(len(e.state.Tiers)),
		},
	})
}

func (e *Engine) emitAllocationIncreased(caller common.Address, pulled *big.Int) {
	e.emit(events.SaleAllocationIncreased{
		Caller:    caller,
		Pulled:    new(big.Int).Set(pulled),
		Committed: new(big.Int).Set(e.state.TotalAllocationCommitted),
	}, &types.Event{
		Type: events.TypeSaleAllocationIncreased,
		Attributes: map[string]string{
			"caller":    caller.Hex(),
			"pulled":    amountAttr(pulled),
			"committed": amountAttr(e.state.TotalAllocationCommitted),
		},
	})
}

func (e *Engine) emitFinalized(caller common.Address, returned, reserved *big.Int) {
	e.emit(events.SaleFinalized{
		Caller:   caller,
		Returned: new(big.Int).Set(returned),
		Reserved: new(big.Int).Set(reserved),
	}, &types.Event{
		Type: events.TypeSaleFinalized,
		Attributes: map[string]string{
			"caller":   caller.Hex(),
			"returned": amountAttr(returned),
			"reserved": amountAttr(reserved),
		},
	})
}

func (e *Engine) emitBonusReleaseSet(caller common.Address, release int64) {
	e.emit(events.SaleBonusReleaseSet{
		Caller:  caller,
		Release: release,
	}, &types.Event{
		Type: events.TypeSaleBonusReleaseSet,
		Attributes: map[string]string{
			"caller":  caller.Hex(),
			"release": strconv.FormatInt(release, 10),
		},
	})
}

func (e *Engine) emitBonusWithdrawn(contributor common.Address, amount *big.Int) {
	e.emit(events.SaleBonusWithdrawn{
		Contributor: contributor,
		Amount:      new(big.Int).Set(amount),
	}, &types.Event{
		Type: events.TypeSaleBonusWithdrawn,
		Attributes: map[string]string{
			"contributor": contributor.Hex(),
			"amount":      amountAttr(amount),
		},
	})
}
