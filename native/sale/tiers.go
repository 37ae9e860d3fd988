package sale

import "math/big"

// NewTiers validates a threshold/percent pair set and returns the ordered
// bonus schedule. Thresholds must be strictly increasing and every percent
// must be at most 100.
func NewTiers(thresholdsCents []*big.Int, percents []uint8) ([]BonusTier, error) {
	if len(thresholdsCents) != len(percents) {
		return nil, ErrLengthMismatch
	}
	tiers := make([]BonusTier, 0, len(thresholdsCents))
	var prev *big.Int
	for i, threshold := range thresholdsCents {
		if threshold == nil || threshold.Sign() <= 0 {
			return nil, ErrInvalidValue
		}
		if prev != nil && threshold.Cmp(prev) <= 0 {
			return nil, ErrInvalidValue
		}
		if percents[i] > 100 {
			return nil, ErrInvalidValue
		}
		tiers = append(tiers, BonusTier{
			ThresholdCents: new(big.Int).Set(threshold),
			Percent:        percents[i],
		})
		prev = threshold
	}
	return tiers, nil
}

// BonusPercentFor returns the bonus percent of the highest tier whose
// threshold does not exceed the contribution value, or zero when the value
// sits below the first threshold. A value exactly equal to a threshold
// receives that tier's bonus.
func BonusPercentFor(valueCents *big.Int, tiers []BonusTier) uint8 {
	if valueCents == nil {
		return 0
	}
	for i := len(tiers) - 1; i >= 0; i-- {
		if valueCents.Cmp(tiers[i].ThresholdCents) >= 0 {
			return tiers[i].Percent
		}
	}
	return 0
}
