package domain

import "github.com/shopspring/decimal"

// moneyPlaces is the number of decimals kept at every rounding boundary.
const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Totals is the result of ComputeTotals.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        Tax             `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Round2 rounds half away from zero to two decimals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// ComputeTotals derives subtotal, tax and grand total from lines.
//
// Line totals are recomputed from unit price and quantity. The subtotal, the
// tax amount and the grand total are each rounded before being fed into the
// next step, which is what client previews display.
func ComputeTotals(lines []LineItem, taxRatePercent decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal := Round2(sum)
	amount := Round2(subtotal.Mul(taxRatePercent).Div(hundred))
	return Totals{
		Subtotal:   subtotal,
		Tax:        Tax{Rate: taxRatePercent, Amount: amount},
		GrandTotal: Round2(subtotal.Add(amount)),
	}
}
