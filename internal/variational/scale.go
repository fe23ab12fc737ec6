package variational

import (
	"math"
)

// MinSD is the floor applied to every effective standard deviation.
const MinSD = 1e-5

// VarianceEpsilon is added to the local-reparameterization output
// variance before taking its square root.
const VarianceEpsilon = 1e-6

// Softplus computes ln(1 + e^x) without overflow for large x.
func Softplus(x float64) float64 {
	return math.Max(x, 0) + math.Log1p(math.Exp(-math.Abs(x)))
}

// SoftplusInverse computes ln(e^y - 1) for y > 0, the inverse of Softplus.
func SoftplusInverse(y float64) float64 {
	// y + ln(1 - e^-y) is exact for large y, where e^y overflows.
	return y + math.Log(-math.Expm1(-y))
}

// sigmoid is the derivative of Softplus.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// RawScaleFor returns the raw scale whose effective sd is sd.
func RawScaleFor(sd float64) float64 {
	return SoftplusInverse(sd)
}

// EffectiveSDFrom maps a raw scale to a standard deviation in
// [MinSD, maxSD] (or [MinSD, inf) when maxSD is nil).
func EffectiveSDFrom(raw float64, maxSD *float64) float64 {
	return clampSD(Softplus(raw), maxSD)
}

func clampSD(sd float64, maxSD *float64) float64 {
	if sd < MinSD {
		sd = MinSD
	}
	if maxSD != nil && sd > *maxSD {
		sd = *maxSD
	}
	return sd
}

// effectiveSDGrad returns d(sd)/d(raw): the softplus slope inside the
// clamp range and zero where the clamp is active.
func effectiveSDGrad(raw float64, maxSD *float64) float64 {
	sp := Softplus(raw)
	if sp < MinSD || (maxSD != nil && sp > *maxSD) {
		return 0
	}
	return sigmoid(raw)
}

// StabilizeVariance repairs an output variance computed through the
// wrapped layer's arithmetic, which can come out slightly negative.
//
// Every element v becomes v + |v|·[v < 0] + VarianceEpsilon: negative
// entries end at VarianceEpsilon, non-negative entries are shifted by it.
// v is modified in place; the number of negative entries is returned.
func StabilizeVariance(v []float64) int {
	negative := 0
	for i, x := range v {
		mask := 0.0
		if x < 0 {
			mask = 1
			negative++
		}
		v[i] = x + math.Abs(x)*mask + VarianceEpsilon
	}
	return negative
}
