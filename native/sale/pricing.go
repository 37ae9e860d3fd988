package sale

import "math/big"

var hundred = big.NewInt(100)

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// ToCommonUnit converts a raw asset amount into the common accounting unit
// (integer cents): rawAmount * unitPriceCents / 10^decimals, truncating
// toward zero. The same rule applies to every accepted asset regardless of
// its decimal precision.
func ToCommonUnit(rawAmount, unitPriceCents *big.Int, decimals uint8) *big.Int {
	if rawAmount == nil || unitPriceCents == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(rawAmount, unitPriceCents)
	return value.Quo(value, pow10(decimals))
}

// TokensForCommonUnit converts a common-unit value into a sale-token amount
// at the current token price: valueCents * 10^tokenDecimals /
// tokenPriceCents, truncating toward zero.
func TokensForCommonUnit(valueCents, tokenPriceCents *big.Int, tokenDecimals uint8) *big.Int {
	if valueCents == nil || tokenPriceCents == nil || tokenPriceCents.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(valueCents, pow10(tokenDecimals))
	return scaled.Quo(scaled, tokenPriceCents)
}

// CalculateBonus returns the extra allocation granted by the tier matching
// the contribution's common-unit value: allocation * percent / 100,
// truncating toward zero.
func CalculateBonus(tokenAllocation, valueCents *big.Int, tiers []BonusTier) *big.Int {
	if tokenAllocation == nil || valueCents == nil {
		return big.NewInt(0)
	}
	percent := BonusPercentFor(valueCents, tiers)
	if percent == 0 {
		return big.NewInt(0)
	}
	bonus := new(big.Int).Mul(tokenAllocation, big.NewInt(int64(percent)))
	return bonus.Quo(bonus, hundred)
}
