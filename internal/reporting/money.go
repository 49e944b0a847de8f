package reporting

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when the report currency is unset or unknown.
const DefaultCurrency = money.USD

// formatMoney renders amount in major units of currency, e.g. "$1,234.56".
func formatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		currency = DefaultCurrency
		cur = money.GetCurrency(currency)
	}

	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), currency).Display()
}

// formatCount renders an integer with thousands separators.
func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}
