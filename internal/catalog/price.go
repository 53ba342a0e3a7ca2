package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pricebook/internal/types"
)

// Amount is a monetary value. Amounts are exact decimals; they are never
// converted between currencies.
type Amount = decimal.Decimal

// Price is an amount in one currency.
type Price struct {
	Currency types.Currency `json:"currency"`
	Value    Amount         `json:"value"`
}

// InternationalPrice is a set of prices, at most one per currency.
//
// An empty set is the canonical zero-cost price: lookups for any currency
// return zero. A non-empty set must carry an entry for every currency it is
// asked about.
type InternationalPrice struct {
	prices []Price
}

// NewInternationalPrice builds a price set from prices. Duplicate currencies
// are kept so that validation can report them.
func NewInternationalPrice(prices ...Price) *InternationalPrice {
	cp := make([]Price, len(prices))
	copy(cp, prices)
	return &InternationalPrice{prices: cp}
}

// ZeroPrice returns an empty price set.
func ZeroPrice() *InternationalPrice {
	return &InternationalPrice{}
}

// Prices returns a copy of the per-currency entries.
func (ip *InternationalPrice) Prices() []Price {
	if ip == nil {
		return nil
	}
	cp := make([]Price, len(ip.prices))
	copy(cp, ip.prices)
	return cp
}

// Price returns the amount for currency. An empty set yields zero; a
// non-empty set without currency yields a currency_value_missing error.
func (ip *InternationalPrice) Price(currency types.Currency) (Amount, error) {
	if ip == nil || len(ip.prices) == 0 {
		return decimal.Zero, nil
	}
	for _, p := range ip.prices {
		if p.Currency == currency {
			return p.Value, nil
		}
	}
	return decimal.Zero, types.NewAppErrorWithDetails(
		types.ErrCodeCurrencyValueMissing,
		fmt.Sprintf("no price defined for currency %s", currency),
		ErrCurrencyValueMissing,
		map[string]any{"currency": string(currency)},
	)
}

// IsZero reports whether every entry is zero (or there are none).
func (ip *InternationalPrice) IsZero() bool {
	if ip == nil {
		return true
	}
	for _, p := range ip.prices {
		if !p.Value.IsZero() {
			return false
		}
	}
	return true
}

// validate checks currency membership, uniqueness and sign. owner names the
// phase the price is attached to.
func (ip *InternationalPrice) validate(owner string, supported map[types.Currency]struct{}) ValidationErrors {
	var errs ValidationErrors
	if ip == nil {
		return errs
	}
	seen := make(map[types.Currency]struct{}, len(ip.prices))
	for _, p := range ip.prices {
		if _, dup := seen[p.Currency]; dup {
			errs.Add(kindPrice, owner, "duplicate price for currency %s", p.Currency)
		}
		seen[p.Currency] = struct{}{}
		if _, ok := supported[p.Currency]; !ok {
			errs.Add(kindPrice, owner, "currency %s is not supported by the catalog", p.Currency)
		}
		if p.Value.IsNegative() {
			errs.Add(kindPrice, owner, "negative amount %s for currency %s", p.Value.String(), p.Currency)
		}
	}
	return errs
}
