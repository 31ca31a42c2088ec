package exporter

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimals used when none is requested.
const DefaultPrecision = 2

// MaxPrecision bounds the requested number of decimals.
const MaxPrecision = 8

// formatFixed rounds half away from zero to exactly precision decimals
func formatFixed(f float64, precision int) string {
	return decimal.NewFromFloat(f).StringFixed(int32(clampPrecision(precision)))
}

// formatThousands formats with precision decimals and comma-separated thousands
func formatThousands(f float64, precision int) string {
	s := formatFixed(f, precision)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}

// formatPercent formats a percentage with one decimal
func formatPercent(f float64) string {
	return formatFixed(f, 1) + "%"
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func clampPrecision(p int) int {
	switch {
	case p < 0:
		return 0
	case p > MaxPrecision:
		return MaxPrecision
	}
	return p
}
