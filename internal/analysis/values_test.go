package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl-compare/hl-compare/internal/model"
)

func TestFindNumbers(t *testing.T) {
	tests := []struct {
		in      string
		value   float64
		scale   float64
		dollar  bool
		percent bool
	}{
		{"$2.5 trillion", 2.5, 1e12, true, false},
		{"12.5%", 12.5, 1, false, true},
		{"1,234,567 shares", 1234567, 1, false, false},
		{"-4.2%", -4.2, 1, false, true},
		{"$383B", 383, 1e9, true, false},
		{"28.5x earnings", 28.5, 1, false, false},
		{"US$5", 5, 1, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ns := findNumbers(tt.in)
			require.NotEmpty(t, ns)
			assert.Equal(t, tt.value, ns[0].value)
			assert.Equal(t, tt.scale, ns[0].scale)
			assert.Equal(t, tt.dollar, ns[0].dollar)
			assert.Equal(t, tt.percent, ns[0].percent)
		})
	}
}

func TestFindNumbers_Skips(t *testing.T) {
	assert.Empty(t, findNumbers("Q3 results in the 10-K"))
	assert.Empty(t, findNumbers("the 3rd quarter"))

	ns := findNumbers("in 2023 revenue was 383")
	require.Len(t, ns, 1)
	assert.Equal(t, 383.0, ns[0].value)
}

func TestNormalize(t *testing.T) {
	schema := model.DefaultSchema()
	tests := []struct {
		key  string
		in   string
		want float64
	}{
		{"revenue", "$383 billion", 383},
		{"revenue", "$500 million", 0.5},
		{"revenue", "383", 383},
		{"revenue", "$2.5T", 2500},
		{"market_cap", "$2.5T", 2.5e12},
		{"volume", "55M", 55e6},
		{"carbon_footprint", "22 million", 22},
		{"pe_ratio", "28.5", 28.5},
	}
	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.in, func(t *testing.T) {
			v := firstNumber(schema.ByKey(tt.key), tt.in)
			require.NotNil(t, v)
			f, ok := v.Float()
			require.True(t, ok)
			assert.InDelta(t, tt.want, f, 1e-6)
		})
	}
}

func TestFirstNumber_TooFar(t *testing.T) {
	spec := model.DefaultSchema().ByKey("pe_ratio")
	far := " is discussed at length in the following section of the report, which covers many other items before we finally get around to it: 12"
	assert.Nil(t, firstNumber(spec, far))
}

func TestTextAfter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{": Technology | Beta: 1.2", "Technology"},
		{" is Communication Services.", "Communication Services"},
		{" include Samsung, Google; and others", "Samsung, Google"},
		{" = AA", "AA"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := textAfter(tt.in)
			require.NotNil(t, v)
			assert.Equal(t, tt.want, v.String())
		})
	}

	assert.Nil(t, textAfter(" grew quickly"))
	assert.Nil(t, textAfter(": x"))
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "short", truncateWords("short", 10))
	assert.Equal(t, "one two", truncateWords("one two three", 9))
}
