package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// microsExp is the storage scale for concert prices and payment amounts.
const microsExp = -6

var ErrAmountPrecision = errors.New("amount has more decimal places than the currency allows")

var minorUnits = map[Currency]int32{
	CurrencyUSD: 2,
}

// MinorUnits is the number of decimal places the currency is charged in.
func (c Currency) MinorUnits() int32 {
	if n, ok := minorUnits[c]; ok {
		return n
	}
	return 2
}

// Money is an amount in micros (10^-6 of the major unit) tagged with its currency.
type Money struct {
	Amount   int64
	Currency Currency
}

func NewMoney(micros int64, currency Currency) Money {
	return Money{Amount: micros, Currency: currency}
}

// MoneyFromDecimal builds Money from a decimal amount such as a concert price.
func MoneyFromDecimal(d decimal.Decimal, currency Currency) Money {
	return NewMoney(FromDecimal(d), currency)
}

// ParseMoney validates a chargeable amount: the currency must be supported and the
// amount must not carry more decimal places than the currency's minor unit.
func ParseMoney(amount decimal.Decimal, currencyCode string) (Money, error) {
	currency, err := ParseCurrency(currencyCode)
	if err != nil {
		return Money{}, err
	}
	if !amount.Equal(amount.Truncate(currency.MinorUnits())) {
		return Money{}, fmt.Errorf("%w: %s allows %d", ErrAmountPrecision, currency, currency.MinorUnits())
	}
	return MoneyFromDecimal(amount, currency), nil
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) ToDecimal() decimal.Decimal {
	return ToDecimal(m.Amount)
}

// ToDecimal converts micros to a decimal amount.
func ToDecimal(micros int64) decimal.Decimal {
	return decimal.New(micros, microsExp)
}

// FromDecimal converts a decimal amount to micros, rounding half away from zero.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Shift(-microsExp).Round(0).IntPart()
}

// Format renders the amount at the currency's minor-unit precision, e.g. "59.50".
func (m Money) Format() string {
	return m.ToDecimal().StringFixed(m.Currency.MinorUnits())
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Format(), m.Currency)
}
