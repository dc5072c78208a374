package domain

import (
	"fmt"
	"math"
	"math/big"
)

// PriceScale is the fixed-point scale used by the contract for prices.
const PriceScale = 1e8

// FixedPrice is a signed price scaled by PriceScale (int256 on chain).
type FixedPrice int64

// FixedPriceFromBig converts an on-chain int256 into a FixedPrice.
// Values outside the int64 range are rejected.
func FixedPriceFromBig(v *big.Int) (FixedPrice, error) {
	if v == nil {
		return 0, fmt.Errorf("nil price")
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("price %s overflows int64", v.String())
	}
	return FixedPrice(v.Int64()), nil
}

// FixedPriceFromFloat scales a float price into fixed point, rounding to nearest.
func FixedPriceFromFloat(p float64) FixedPrice {
	return FixedPrice(math.Round(p * PriceScale))
}

// Float returns the price as a float.
func (p FixedPrice) Float() float64 {
	return float64(p) / PriceScale
}

func (p FixedPrice) String() string {
	return fmt.Sprintf("%.2f", p.Float())
}
