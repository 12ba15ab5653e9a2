package shadow

// HumidityRange is a coarse soil moisture bucket.
type HumidityRange int

// Humidity buckets, driest first. RangeUnknown is the sentinel used before
// the first sample and for unrecognized wire tokens.
const (
	RangeUnknown HumidityRange = iota
	RangeVeryDry
	RangeDry
	RangeOptimal
	RangeWet
	RangeVeryWet
)

// unknownRangeLabel is rendered for RangeUnknown in logs and in the live
// humidityRange report field. It is never parsed back.
const unknownRangeLabel = "DESCONOCIDO"

var rangeTokens = map[HumidityRange]string{
	RangeVeryDry: "MUY_SECO",
	RangeDry:     "SECO",
	RangeOptimal: "OPTIMO",
	RangeWet:     "HUMEDO",
	RangeVeryWet: "MUY_HUMEDO",
}

var tokenRanges = func() map[string]HumidityRange {
	m := make(map[string]HumidityRange, len(rangeTokens))
	for r, tok := range rangeTokens {
		m[tok] = r
	}
	return m
}()

// Token returns the wire token for a valid bucket.
// RangeUnknown (and any out-of-range value) has no token.
func (r HumidityRange) Token() (string, bool) {
	tok, ok := rangeTokens[r]
	return tok, ok
}

// String returns the wire token, or DESCONOCIDO for RangeUnknown.
func (r HumidityRange) String() string {
	if tok, ok := r.Token(); ok {
		return tok
	}
	return unknownRangeLabel
}

// Known reports whether r is one of the five valid buckets.
func (r HumidityRange) Known() bool {
	_, ok := rangeTokens[r]
	return ok
}

// ParseHumidityRange maps a wire token to its bucket.
// Any unrecognized token, including DESCONOCIDO, yields RangeUnknown.
func ParseHumidityRange(token string) HumidityRange {
	if r, ok := tokenRanges[token]; ok {
		return r
	}
	return RangeUnknown
}

// RangeFromPercent buckets a 0..100 moisture percentage.
func RangeFromPercent(percent int) HumidityRange {
	switch {
	case percent <= 20:
		return RangeVeryDry
	case percent <= 40:
		return RangeDry
	case percent <= 70:
		return RangeOptimal
	case percent <= 90:
		return RangeWet
	default:
		return RangeVeryWet
	}
}
