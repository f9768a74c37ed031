package notification

import "github.com/shopspring/decimal"

// Money renders an amount held in minor units, e.g. Money(12550, "ETB") is
// "125.50 ETB".
func Money(amount int64, currency string) string {
	return decimal.New(amount, -2).StringFixed(2) + " " + currency
}
