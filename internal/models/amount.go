package models

import "github.com/shopspring/decimal"

// ValidPrice reports whether price is a strictly positive whole number of the
// smallest currency unit.
func ValidPrice(price decimal.Decimal) bool {
	return price.Sign() > 0 && price.IsInteger()
}

// ValidAmount reports whether amount is a non-negative whole number of the
// smallest currency unit.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.Sign() >= 0 && amount.IsInteger()
}
