package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// ParseMoney builds Money from a wire amount and an ISO 4217 code.
func ParseMoney(amount decimal.Decimal, code string) (Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, fmt.Errorf("currency[%s] is not valid: %w", code, err)
	}

	return Money{Amount: amount, Currency: unit}, nil
}
