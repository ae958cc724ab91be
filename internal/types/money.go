// README: Common money value object used across modules.
package types

import "fmt"

// Money is a fixed-point amount in minor currency units (1/100 of the main
// unit). Balances and prices never use floating point.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

const DefaultCurrency = "SYP"

// FromMajor builds a Money from a whole-unit amount.
func FromMajor(units int64, currency string) Money {
	return Money{Amount: units * 100, Currency: currency}
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

func (m Money) Add(n Money) Money { return Money{Amount: m.Amount + n.Amount, Currency: m.Currency} }
func (m Money) Sub(n Money) Money { return Money{Amount: m.Amount - n.Amount, Currency: m.Currency} }

// String renders the amount with two decimal places, e.g. "55000.00 SYP".
func (m Money) String() string {
	sign := ""
	amt := m.Amount
	if amt < 0 {
		sign = "-"
		amt = -amt
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amt/100, amt%100, m.Currency)
}
