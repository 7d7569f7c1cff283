package market

import (
	"fmt"
	"math"
	"strings"
)

type Instrument struct {
	Name             string
	BaseCurrency     string
	QuoteCurrency    string
	PipLocation      int
	DisplayPrecision int
}

// PipSize is the standard price increment, 0.0001 for EUR_USD.
func (i Instrument) PipSize() float64 {
	return math.Pow(10, float64(i.PipLocation))
}

// PointSize is one fractional pip (pipette); order deviation is counted in points.
func (i Instrument) PointSize() float64 {
	return math.Pow(10, float64(-i.DisplayPrecision))
}

var Instruments = map[string]Instrument{
	"EUR_USD": {Name: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5},
	"GBP_USD": {Name: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5},
	"AUD_USD": {Name: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5},
	"NZD_USD": {Name: "NZD_USD", BaseCurrency: "NZD", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5},
	"USD_JPY": {Name: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2, DisplayPrecision: 3},
	"USD_CHF": {Name: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4, DisplayPrecision: 5},
	"USD_CAD": {Name: "USD_CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", PipLocation: -4, DisplayPrecision: 5},
}

// NormalizeSymbol accepts EURUSD, EUR/USD or eur_usd and returns EUR_USD.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "/", "_")
	if len(s) == 6 && !strings.Contains(s, "_") {
		s = s[:3] + "_" + s[3:]
	}
	return s
}

// Lookup returns metadata for a symbol in any of the accepted spellings.
func Lookup(symbol string) (Instrument, error) {
	inst, ok := Instruments[NormalizeSymbol(symbol)]
	if !ok {
		return Instrument{}, fmt.Errorf("unknown instrument %q", symbol)
	}
	return inst, nil
}
