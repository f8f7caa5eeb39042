package utils

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NotAvailable is shown in place of a metric that cannot be computed.
const NotAvailable = "N/A"

// FormatNumber formats an integer with comma thousands separators
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	if n < 0 {
		str = str[1:] // Remove minus sign for processing
	}

	var result []byte
	for i := len(str) - 1; i >= 0; i-- {
		if (len(str)-i-1)%3 == 0 && i != len(str)-1 {
			result = append([]byte{','}, result...)
		}
		result = append([]byte{str[i]}, result...)
	}

	if n < 0 {
		return "-" + string(result)
	}
	return string(result)
}

// FormatDecimal rounds half away from zero to places and groups the integer
// part, e.g. 1234567.891 with 2 places is "1,234,567.89".
func FormatDecimal(v float64, places int32) string {
	s := decimal.NewFromFloat(v).Round(places).StringFixed(places)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return s
	}
	out := FormatNumber(n)
	if frac != "" {
		out += "." + frac
	}
	if neg && strings.Trim(out, "0.,") != "" {
		out = "-" + out
	}
	return out
}

// FormatMoney renders a pound amount, e.g. "£1,234".
func FormatMoney(v float64, places int32) string {
	s := FormatDecimal(v, places)
	if strings.HasPrefix(s, "-") {
		return "-£" + s[1:]
	}
	return "£" + s
}

// FormatPercent renders a ratio as a percentage, e.g. 0.3456 -> "34.6%".
func FormatPercent(ratio float64, places int32) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).Round(places).StringFixed(places) + "%"
}

// Round rounds half away from zero to places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
