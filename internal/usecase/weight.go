package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/yaziris/discured/internal/domain"
)

var hundred = decimal.NewFromInt(100)

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// computeWeight turns a token holding into a vote percentage with two
// decimal places, clamped to [0, 100]. Holdings below the privilege
// threshold weigh nothing, regardless of the ratio.
func computeWeight(amount decimal.Decimal, curation domain.Curation) decimal.Decimal {
	if amount.LessThan(decimalFromFloat(curation.MinTokens)) {
		return decimal.Zero
	}
	ratio := decimalFromFloat(curation.TokensPerPercent)
	if ratio.IsZero() {
		return decimal.Zero
	}
	weight := amount.Div(ratio).Round(2)
	if weight.GreaterThan(hundred) {
		return hundred
	}
	if weight.IsNegative() {
		return decimal.Zero
	}
	return weight
}

// basisPoints converts a percentage weight into the wire encoding.
func basisPoints(weight decimal.Decimal) int16 {
	return int16(weight.Mul(hundred).IntPart())
}
