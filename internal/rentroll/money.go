package rentroll

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a currency amount rendered with a "$" prefix and two fraction digits.
// The zero value is $0.00.
type Money struct {
	amount decimal.Decimal
}

// NewMoney rounds d to cents
func NewMoney(d decimal.Decimal) Money {
	return Money{amount: d.Round(2)}
}

// plainDecimal rejects exponents, which decimal.NewFromString would expand
var plainDecimal = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)$`)

// NormalizeMoney parses a raw currency token. Currency symbols and thousands
// separators are dropped. ok is false when the token is not a number, in
// which case the returned value is $0.00.
func NormalizeMoney(raw string) (Money, bool) {
	cleaned := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(raw))
	if !plainDecimal.MatchString(cleaned) {
		return Money{}, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return Money{}, false
	}

	return NewMoney(d), true
}

// Decimal returns the amount
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// IsZero reports whether the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Add returns m + o
func (m Money) Add(o Money) Money {
	return NewMoney(m.amount.Add(o.amount))
}

func (m Money) String() string {
	return "$" + m.amount.StringFixed(2)
}

// MarshalText renders the canonical string form
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts any form NormalizeMoney accepts
func (m *Money) UnmarshalText(text []byte) error {
	parsed, _ := NormalizeMoney(string(text))
	*m = parsed
	return nil
}
