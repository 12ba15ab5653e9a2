package shadow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumidityRange_TokenRoundTrip(t *testing.T) {
	for _, tok := range []string{"MUY_SECO", "SECO", "OPTIMO", "HUMEDO", "MUY_HUMEDO"} {
		t.Run(tok, func(t *testing.T) {
			r := ParseHumidityRange(tok)
			assert.True(t, r.Known())

			got, ok := r.Token()
			assert.True(t, ok)
			assert.Equal(t, tok, got)
		})
	}
}

func TestHumidityRange_Unknown(t *testing.T) {
	for _, tok := range []string{"", "DESCONOCIDO", "muy_seco", "WET", "CUSTOM"} {
		assert.Equal(t, RangeUnknown, ParseHumidityRange(tok), "token %q", tok)
	}

	_, ok := RangeUnknown.Token()
	assert.False(t, ok, "RangeUnknown must have no forward token")
	assert.Equal(t, "DESCONOCIDO", RangeUnknown.String())
	assert.False(t, HumidityRange(42).Known())
}

func TestRangeFromPercent(t *testing.T) {
	tests := []struct {
		percent int
		want    HumidityRange
	}{
		{0, RangeVeryDry},
		{20, RangeVeryDry},
		{21, RangeDry},
		{40, RangeDry},
		{41, RangeOptimal},
		{70, RangeOptimal},
		{71, RangeWet},
		{90, RangeWet},
		{91, RangeVeryWet},
		{100, RangeVeryWet},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RangeFromPercent(tt.percent), "percent %d", tt.percent)
	}
}
