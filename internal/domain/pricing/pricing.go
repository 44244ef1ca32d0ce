package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/digital-storefront/internal/domain/cart"
)

var ErrInvalidMethod = errors.New("invalid payment method")

var hundred = decimal.NewFromInt(100)

// FeeRule is the surcharge a payment method adds on top of the subtotal.
// Flat and Percent may be combined.
type FeeRule struct {
	Flat    int64           `json:"flat"`
	Percent decimal.Decimal `json:"percent"`
}

func Flat(amount int64) FeeRule {
	return FeeRule{Flat: amount}
}

// Percent builds a percentage rule from a decimal string such as "0.7".
func Percent(pct string) (FeeRule, error) {
	d, err := decimal.NewFromString(pct)
	if err != nil {
		return FeeRule{}, fmt.Errorf("parse percent %q: %w", pct, err)
	}
	return FeeRule{Percent: d}, nil
}

// Fee returns the fee for a subtotal. The percentage part is rounded half-up to the unit.
// No fee is charged on a zero subtotal.
func (r FeeRule) Fee(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	fee := r.Flat
	if !r.Percent.IsZero() {
		fee += decimal.NewFromInt(subtotal).Mul(r.Percent).Div(hundred).Round(0).IntPart()
	}
	return fee
}

type Quote struct {
	Subtotal int64 `json:"subtotal"`
	Fee      int64 `json:"fee"`
	Total    int64 `json:"total"`
}

// ComputeTotal prices the selected items under rule. Unselected items are ignored.
func ComputeTotal(items []cart.LineItem, rule FeeRule) Quote {
	var subtotal int64
	for _, item := range items {
		if item.Selected {
			subtotal += item.LineTotal()
		}
	}
	fee := rule.Fee(subtotal)
	return Quote{
		Subtotal: subtotal,
		Fee:      fee,
		Total:    subtotal + fee,
	}
}
