package normalize

import "math"

// Round2 rounds to 2 decimal places, half away from zero. Prices are
// non-negative throughout the catalog, so this matches round-half-up.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FinalPrice derives the effective price from an original price, an optional
// percentage discount, and an optional absolute fallback price. A percentage
// always wins over the absolute fallback; callers routinely send a legacy
// fixed sale price alongside the newer percent field. The result is rounded
// to 2 decimals and clamped to >= 0.
func FinalPrice(original float64, percent *float64, fallback *float64) float64 {
	switch {
	case percent != nil:
		p := original * (1 - *percent/100)
		if p < 0 {
			p = 0
		}
		return Round2(p)
	case fallback != nil:
		f := *fallback
		if f < 0 {
			f = 0
		}
		return Round2(f)
	default:
		if original < 0 {
			return 0
		}
		return Round2(original)
	}
}
