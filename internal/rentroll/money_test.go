package rentroll

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMoney(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"$1,234.50", "$1234.50", true},
		{"1234.5", "$1234.50", true},
		{"1,234.5", "$1234.50", true},
		{"0", "$0.00", true},
		{"  $950 ", "$950.00", true},
		{"-25.125", "$-25.13", true},
		{"abc", "$0.00", false},
		{"", "$0.00", false},
		{"$", "$0.00", false},
		{"12.3.4", "$0.00", false},
		{".5", "$0.50", true},
		{"+12", "$12.00", true},
		{"1e3", "$0.00", false},
		{"1e5000000", "$0.00", false},
		{"1E-2", "$0.00", false},
		{"0x1F", "$0.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeMoney(tt.raw)
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestMoneyZeroValue(t *testing.T) {
	var m Money
	assert.Equal(t, "$0.00", m.String())
	assert.True(t, m.IsZero())
}

func TestMoneyAdd(t *testing.T) {
	a, _ := NormalizeMoney("1000")
	b, _ := NormalizeMoney("50.5")
	assert.Equal(t, "$1050.50", a.Add(b).String())
	assert.True(t, a.Add(b).Decimal().Equal(decimal.RequireFromString("1050.5")))
}

func TestMoneyJSON(t *testing.T) {
	m, _ := NormalizeMoney("$2,000")
	data, err := json.Marshal(struct {
		Rent Money `json:"rent"`
	}{m})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rent":"$2000.00"}`, string(data))

	var back struct {
		Rent Money `json:"rent"`
	}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.String(), back.Rent.String())
}
