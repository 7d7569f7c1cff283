package market

import "fmt"

// QuoteToAccountRate converts one unit of the instrument's quote currency
// into the account currency, using mid as the instrument's current price.
//
//	EUR_USD, USD account -> 1.0
//	USD_JPY, USD account -> 1/mid
func QuoteToAccountRate(inst Instrument, accountCurrency string, mid float64) (float64, error) {
	if inst.QuoteCurrency == accountCurrency {
		return 1.0, nil
	}
	if inst.BaseCurrency == accountCurrency {
		if mid <= 0 {
			return 0, fmt.Errorf("no price to convert %s into %s", inst.QuoteCurrency, accountCurrency)
		}
		return 1.0 / mid, nil
	}
	return 0, fmt.Errorf(
		"cross conversion not implemented for %s → %s",
		inst.QuoteCurrency,
		accountCurrency,
	)
}
