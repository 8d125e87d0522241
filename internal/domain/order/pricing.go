package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Totals is the monetary summary of an order.
type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	TaxAmount  decimal.Decimal
	GrandTotal decimal.Decimal
}

// ComputeTotals derives the taxable amount and grand total from a subtotal
// and a store-credit discount. The discount is floored at the subtotal, tax
// applies to the discounted amount, and amounts are rounded to 2 decimal
// places.
func ComputeTotals(subtotal, discount, taxRate decimal.Decimal) Totals {
	after := subtotal.Sub(discount)
	if after.IsNegative() {
		after = decimal.Zero
	}
	tax := after.Mul(taxRate).Round(2)
	return Totals{
		Subtotal:   subtotal.Round(2),
		Discount:   discount.Round(2),
		TaxAmount:  tax,
		GrandTotal: after.Add(tax).Round(2),
	}
}

// receiptNumber formats the human-readable order identifier: the order date
// as YYMMDD plus a 5-digit same-day sequence.
func receiptNumber(t time.Time, seq int) string {
	return fmt.Sprintf("TRX-%s-%05d", t.Format("060102"), seq)
}
