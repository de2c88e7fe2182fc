package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Currency is an ISO 4217 code accepted by the payment gateway.
type Currency string

const (
	CurrencyUSD Currency = "USD"
)

var supportedCurrencies = []Currency{CurrencyUSD}

// SupportedCurrencies lists every currency the gateway accepts.
func SupportedCurrencies() []Currency {
	out := make([]Currency, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// ParseCurrency matches s case-insensitively against the supported set.
func ParseCurrency(s string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !code.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
	}
	return code, nil
}

func (c Currency) Valid() bool {
	for _, s := range supportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}
