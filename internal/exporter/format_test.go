package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFixed(t *testing.T) {
	tests := []struct {
		name      string
		input     float64
		precision int
		expected  string
	}{
		{"pads decimals", 13.4, 2, "13.40"},
		{"rounds half away from zero", 2.345, 2, "2.35"},
		{"negative", -0.3162277, 3, "-0.316"},
		{"zero precision", 6500000.4, 0, "6500000"},
		{"negative precision clamps", 1.5, -3, "2"},
		{"large precision clamps", 1.0 / 3.0, 20, "0.33333333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFixed(tt.input, tt.precision))
		})
	}
}

func TestFormatThousands(t *testing.T) {
	tests := []struct {
		input     float64
		precision int
		expected  string
	}{
		{0, 0, "0"},
		{999, 0, "999"},
		{1000, 0, "1,000"},
		{1234567.891, 2, "1,234,567.89"},
		{-45210.5, 1, "-45,210.5"},
		{100000, 0, "100,000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatThousands(tt.input, tt.precision))
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "257.1%", formatPercent(257.142857))
	assert.Equal(t, "true", formatBool(true))
	assert.Equal(t, "false", formatBool(false))
}
