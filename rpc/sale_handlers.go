package rpc

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"saleledger/native/sale"
	"saleledger/observability"
)

type method struct {
	fn    func(s *Server, params json.RawMessage) (interface{}, *handlerError)
	admin bool
}

var methodTable = map[string]method{
	"sale_initialize":               {fn: (*Server).initialize, admin: true},
	"sale_increaseAllocation":       {fn: (*Server).increaseAllocation, admin: true},
	"sale_setTokenPrice":            {fn: (*Server).setTokenPrice, admin: true},
	"sale_setAssetPrice":            {fn: (*Server).setAssetPrice, admin: true},
	"sale_setMinContribution":       {fn: (*Server).setMinContribution, admin: true},
	"sale_setClosingTime":           {fn: (*Server).setClosingTime, admin: true},
	"sale_setBonusReleaseDate":      {fn: (*Server).setBonusReleaseDate, admin: true},
	"sale_addAdmin":                 {fn: (*Server).addAdmin, admin: true},
	"sale_removeAdmin":              {fn: (*Server).removeAdmin, admin: true},
	"sale_addToWhitelist":           {fn: (*Server).addToWhitelist, admin: true},
	"sale_removeFromWhitelist":      {fn: (*Server).removeFromWhitelist, admin: true},
	"sale_addBatchToWhitelist":      {fn: (*Server).addBatchToWhitelist, admin: true},
	"sale_removeBatchFromWhitelist": {fn: (*Server).removeBatchFromWhitelist, admin: true},
	"sale_finalize":                 {fn: (*Server).finalize, admin: true},
	"sale_withdrawFunds":            {fn: (*Server).withdrawFunds, admin: true},
	"sale_withdrawToken":            {fn: (*Server).withdrawToken, admin: true},
	"sale_contribute":               {fn: (*Server).contribute},
	"sale_withdrawBonus":            {fn: (*Server).withdrawBonus},
	"sale_getSummary":               {fn: (*Server).getSummary},
	"sale_getPrices":                {fn: (*Server).getPrices},
	"sale_getTiers":                 {fn: (*Server).getTiers},
	"sale_hasClosed":                {fn: (*Server).hasClosed},
	"sale_isWhitelisted":            {fn: (*Server).isWhitelisted},
	"sale_isAdmin":                  {fn: (*Server).isAdmin},
	"sale_pendingBonus":             {fn: (*Server).pendingBonus},
	"sale_getEvents":                {fn: (*Server).getEvents},
}

func decodeParams(raw json.RawMessage, out interface{}) *handlerError {
	if len(raw) == 0 {
		return invalidParams("missing params")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalidParams("malformed params: " + err.Error())
	}
	return nil
}

func parseAddress(s string) (common.Address, *handlerError) {
	if !common.IsHexAddress(s) {
		return common.Address{}, invalidParams("invalid address " + s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*big.Int, *handlerError) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, invalidParams("invalid amount " + s)
	}
	return amount, nil
}

type callerParams struct {
	Caller string `json:"caller"`
}

type initializeParams struct {
	Caller          string   `json:"caller"`
	ThresholdsCents []string `json:"thresholdsCents"`
	Percents        []uint8  `json:"percents"`
}

func (s *Server) initialize(raw json.RawMessage) (interface{}, *handlerError) {
	var p initializeParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	thresholds := make([]*big.Int, 0, len(p.ThresholdsCents))
	for _, t := range p.ThresholdsCents {
		threshold, hErr := parseAmount(t)
		if hErr != nil {
			return nil, hErr
		}
		thresholds = append(thresholds, threshold)
	}
	if err := s.engine.Initialize(caller, thresholds, p.Percents); err != nil {
		return nil, engineError(err)
	}
	return summaryResult(s.engine.Summary()), nil
}

func (s *Server) increaseAllocation(raw json.RawMessage) (interface{}, *handlerError) {
	var p callerParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.IncreaseAllocation(caller); err != nil {
		return nil, engineError(err)
	}
	return summaryResult(s.engine.Summary()), nil
}

type priceParams struct {
	Caller     string `json:"caller"`
	Asset      string `json:"asset,omitempty"`
	PriceCents string `json:"priceCents"`
}

func (s *Server) setTokenPrice(raw json.RawMessage) (interface{}, *handlerError) {
	var p priceParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	price, hErr := parseAmount(p.PriceCents)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.SetSalePrice(caller, price); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

func (s *Server) setAssetPrice(raw json.RawMessage) (interface{}, *handlerError) {
	var p priceParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	price, hErr := parseAmount(p.PriceCents)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.SetAssetPrice(caller, sale.Asset(p.Asset), price); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

type minContributionParams struct {
	Caller   string `json:"caller"`
	MinCents string `json:"minCents"`
}

func (s *Server) setMinContribution(raw json.RawMessage) (interface{}, *handlerError) {
	var p minContributionParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	minCents, hErr := parseAmount(p.MinCents)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.SetMinContribution(caller, minCents); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

type timestampParams struct {
	Caller    string `json:"caller"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) setClosingTime(raw json.RawMessage) (interface{}, *handlerError) {
	var p timestampParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.SetClosingTime(caller, p.Timestamp); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

func (s *Server) setBonusReleaseDate(raw json.RawMessage) (interface{}, *handlerError) {
	var p timestampParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.SetBonusReleaseDate(caller, p.Timestamp); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

type accountParams struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
}

func (s *Server) accountCall(raw json.RawMessage, call func(caller, account common.Address) error) (interface{}, *handlerError) {
	var p accountParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	account, hErr := parseAddress(p.Account)
	if hErr != nil {
		return nil, hErr
	}
	if err := call(caller, account); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

func (s *Server) addAdmin(raw json.RawMessage) (interface{}, *handlerError) {
	return s.accountCall(raw, s.engine.AddAdmin)
}

func (s *Server) removeAdmin(raw json.RawMessage) (interface{}, *handlerError) {
	return s.accountCall(raw, s.engine.RemoveAdmin)
}

func (s *Server) addToWhitelist(raw json.RawMessage) (interface{}, *handlerError) {
	return s.accountCall(raw, s.engine.AddToWhitelist)
}

func (s *Server) removeFromWhitelist(raw json.RawMessage) (interface{}, *handlerError) {
	return s.accountCall(raw, s.engine.RemoveFromWhitelist)
}

type batchParams struct {
	Caller   string   `json:"caller"`
	Accounts []string `json:"accounts"`
}

func (s *Server) batchCall(raw json.RawMessage, call func(caller common.Address, accounts []common.Address) error) (interface{}, *handlerError) {
	var p batchParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	accounts := make([]common.Address, 0, len(p.Accounts))
	for _, entry := range p.Accounts {
		account, hErr := parseAddress(entry)
		if hErr != nil {
			return nil, hErr
		}
		accounts = append(accounts, account)
	}
	if err := call(caller, accounts); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

func (s *Server) addBatchToWhitelist(raw json.RawMessage) (interface{}, *handlerError) {
	return s.batchCall(raw, s.engine.AddBatchToWhitelist)
}

func (s *Server) removeBatchFromWhitelist(raw json.RawMessage) (interface{}, *handlerError) {
	return s.batchCall(raw, s.engine.RemoveBatchFromWhitelist)
}

func (s *Server) finalize(raw json.RawMessage) (interface{}, *handlerError) {
	var p callerParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.Finalize(caller); err != nil {
		return nil, engineError(err)
	}
	return summaryResult(s.engine.Summary()), nil
}

type withdrawFundsParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) withdrawFunds(raw json.RawMessage) (interface{}, *handlerError) {
	var p withdrawFundsParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	amount, hErr := parseAmount(p.Amount)
	if hErr != nil {
		return nil, hErr
	}
	if err := s.engine.WithdrawFunds(caller, amount); err != nil {
		return nil, engineError(err)
	}
	return true, nil
}

type assetParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
}

func (s *Server) withdrawToken(raw json.RawMessage) (interface{}, *handlerError) {
	var p assetParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	amount, err := s.engine.WithdrawToken(caller, sale.Asset(p.Asset))
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"swept": amount.String()}, nil
}

type contributeParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type contributionResult struct {
	Contributor string `json:"contributor"`
	Asset       string `json:"asset"`
	RawAmount   string `json:"rawAmount"`
	ValueCents  string `json:"valueCents"`
	Allocation  string `json:"allocation"`
	Bonus       string `json:"bonus"`
}

func (s *Server) contribute(raw json.RawMessage) (interface{}, *handlerError) {
	var p contributeParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	amount, hErr := parseAmount(p.Amount)
	if hErr != nil {
		return nil, hErr
	}
	rec, err := s.engine.Contribute(caller, sale.Asset(p.Asset), amount)
	if err != nil {
		return nil, engineError(err)
	}
	observability.SaleMetrics().ObserveContribution(
		string(rec.Asset),
		wholeTokens(rec.Allocation, s.engine.TokenDecimals()),
		wholeTokens(rec.Bonus, s.engine.TokenDecimals()),
	)
	return contributionResult{
		Contributor: rec.Contributor.Hex(),
		Asset:       string(rec.Asset),
		RawAmount:   rec.RawAmount.String(),
		ValueCents:  rec.ValueCents.String(),
		Allocation:  rec.Allocation.String(),
		Bonus:       rec.Bonus.String(),
	}, nil
}

func wholeTokens(amount *big.Int, decimals uint8) float64 {
	if amount == nil || amount.Sign() <= 0 {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), scale).Float64()
	return value
}

func (s *Server) withdrawBonus(raw json.RawMessage) (interface{}, *handlerError) {
	var p callerParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return nil, hErr
	}
	caller, hErr := parseAddress(p.Caller)
	if hErr != nil {
		return nil, hErr
	}
	amount, err := s.engine.WithdrawBonus(caller)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"withdrawn": amount.String()}, nil
}

type summaryPayload struct {
	Owner                    string `json:"owner"`
	OpeningTime              int64  `json:"openingTime"`
	ClosingTime              int64  `json:"closingTime"`
	BonusReleaseDate         int64  `json:"bonusReleaseDate"`
	BonusLockSeconds         int64  `json:"bonusLockSeconds"`
	TokenPriceCents          string `json:"tokenPriceCents"`
	MinContributionCents     string `json:"minContributionCents"`
	TotalAllocationCommitted string `json:"totalAllocationCommitted"`
	TotalTokensSold          string `json:"totalTokensSold"`
	TotalBonusIssued         string `json:"totalBonusIssued"`
	BonusPaidOut             string `json:"bonusPaidOut"`
	CollectedNative          string `json:"collectedNative"`
	Initialized              bool   `json:"initialized"`
	Finalized                bool   `json:"finalized"`
}

func summaryResult(sum sale.Summary) summaryPayload {
	return summaryPayload{
		Owner:                    sum.Owner.Hex(),
		OpeningTime:              sum.OpeningTime,
		ClosingTime:              sum.ClosingTime,
		BonusReleaseDate:         sum.BonusReleaseDate,
		BonusLockSeconds:         sum.BonusLockSeconds,
		TokenPriceCents:          sum.TokenPriceCents.String(),
		MinContributionCents:     sum.MinContributionCents.String(),
		TotalAllocationCommitted: sum.TotalAllocationCommitted.String(),
		TotalTokensSold:          sum.TotalTokensSold.String(),
		TotalBonusIssued:         sum.TotalBonusIssued.String(),
		BonusPaidOut:             sum.BonusPaidOut.String(),
		CollectedNative:          sum.CollectedNative.String(),
		Initialized:              sum.Initialized,
		Finalized:                sum.Finalized,
	}
}

func (s *Server) getSummary(json.RawMessage) (interface{}, *handlerError) {
	return summaryResult(s.engine.Summary()), nil
}

func (s *Server) getPrices(json.RawMessage) (interface{}, *handlerError) {
	prices := s.engine.Prices()
	out := make(map[string]string, len(prices))
	for asset, price := range prices {
		out[string(asset)] = price.String()
	}
	return out, nil
}

type tierPayload struct {
	ThresholdCents string `json:"thresholdCents"`
	Percent        uint8  `json:"percent"`
}

func (s *Server) getTiers(json.RawMessage) (interface{}, *handlerError) {
	tiers := s.engine.Tiers()
	out := make([]tierPayload, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, tierPayload{ThresholdCents: tier.ThresholdCents.String(), Percent: tier.Percent})
	}
	return out, nil
}

func (s *Server) hasClosed(json.RawMessage) (interface{}, *handlerError) {
	return s.engine.HasClosed(), nil
}

type queryAccountParams struct {
	Account string `json:"account"`
}

func (s *Server) queryAccount(raw json.RawMessage) (common.Address, *handlerError) {
	var p queryAccountParams
	if hErr := decodeParams(raw, &p); hErr != nil {
		return common.Address{}, hErr
	}
	return parseAddress(p.Account)
}

func (s *Server) isWhitelisted(raw json.RawMessage) (interface{}, *handlerError) {
	account, hErr := s.queryAccount(raw)
	if hErr != nil {
		return nil, hErr
	}
	return s.engine.IsWhitelisted(account), nil
}

func (s *Server) isAdmin(raw json.RawMessage) (interface{}, *handlerError) {
	account, hErr := s.queryAccount(raw)
	if hErr != nil {
		return nil, hErr
	}
	return s.engine.IsAdmin(account), nil
}

func (s *Server) pendingBonus(raw json.RawMessage) (interface{}, *handlerError) {
	account, hErr := s.queryAccount(raw)
	if hErr != nil {
		return nil, hErr
	}
	return map[string]string{"pending": s.engine.PendingBonus(account).String()}, nil
}

type eventPayload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) getEvents(json.RawMessage) (interface{}, *handlerError) {
	recorded := s.engine.Events()
	out := make([]eventPayload, 0, len(recorded))
	for _, evt := range recorded {
		out = append(out, eventPayload{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out, nil
}
