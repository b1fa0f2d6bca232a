package currency

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DeveloperShare is the part of net sales the developer keeps after the
// platform's 30% revenue share.
var DeveloperShare = decimal.RequireFromString("0.7")

// RealizedProfit applies the revenue share to netSalesUSD and floors the
// result to whole dollars.
func RealizedProfit(netSalesUSD decimal.Decimal) int64 {
	return netSalesUSD.Mul(DeveloperShare).Floor().IntPart()
}

// FromFloat converts an upstream USD amount using its shortest decimal form,
// so 100.499 stays 100.499 instead of its binary approximation.
func FromFloat(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount)
}

// FormatWhole renders a whole-dollar amount with thousands separators.
func FormatWhole(amount int64) string {
	return humanize.Comma(amount)
}
