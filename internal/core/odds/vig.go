package odds

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// FairPair holds vig-free win probabilities for both sides of an event.
type FairPair struct {
	Away decimal.Decimal
	Home decimal.Decimal
}

// RemoveVig2 normalizes two implied probabilities (contract YES prices) so
// they sum to one, stripping the overround. ok is false when either price
// is non-positive.
func RemoveVig2(a, b decimal.Decimal) (fa, fb decimal.Decimal, ok bool) {
	if !a.IsPositive() || !b.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	total := a.Add(b)
	fa = a.DivRound(total, 6)
	return fa, one.Sub(fa), true
}

// RemoveVig3 normalizes three implied probabilities (home, draw, away).
func RemoveVig3(a, b, c decimal.Decimal) (fa, fb, fc decimal.Decimal, ok bool) {
	if !a.IsPositive() || !b.IsPositive() || !c.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	total := a.Add(b).Add(c)
	fa = a.DivRound(total, 6)
	fb = b.DivRound(total, 6)
	return fa, fb, one.Sub(fa).Sub(fb), true
}

// Overround is how far the implied probabilities exceed one.
func Overround(probs ...decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range probs {
		sum = sum.Add(p)
	}
	return sum.Sub(one)
}
