package fit

import (
	"math"
)

// Kernel is a covariance function of a Gaussian process.
type Kernel interface {
	Covariance(x, y []float64) float64
}

// SquaredExponential is the kernel
//  σ² exp(-r²/2)
// where r is the distance between the points scaled by LengthFactor in each
// dimension. A nil LengthFactor means unit lengths.
type SquaredExponential struct {
	SignalVariance float64
	LengthFactor   []float64
}

func (k SquaredExponential) Covariance(x, y []float64) float64 {
	r := scaledDistance(x, y, k.LengthFactor)
	return k.SignalVariance * math.Exp(-r*r/2)
}

// Exponential is the kernel
//  σ² exp(-r^γ)
// with 0 < Gamma ≤ 2.
type Exponential struct {
	SignalVariance float64
	LengthFactor   []float64
	Gamma          float64
}

func (k Exponential) Covariance(x, y []float64) float64 {
	r := scaledDistance(x, y, k.LengthFactor)
	return k.SignalVariance * math.Exp(-math.Pow(r, k.Gamma))
}

// Matern is the Matérn kernel with half-integer smoothness ν = P + 1/2 for P
// in {0, 1, 2}.
type Matern struct {
	SignalVariance float64
	LengthFactor   []float64
	P              int
}

func (k Matern) Covariance(x, y []float64) float64 {
	r := scaledDistance(x, y, k.LengthFactor)
	switch k.P {
	case 0:
		return k.SignalVariance * math.Exp(-r)
	case 1:
		s := math.Sqrt(3) * r
		return k.SignalVariance * (1 + s) * math.Exp(-s)
	case 2:
		s := math.Sqrt(5) * r
		return k.SignalVariance * (1 + s + s*s/3) * math.Exp(-s)
	}
	panic("fit: unsupported Matern smoothness")
}

// Linear is the kernel
//  Bias + Scale Σ (x_d - Center)(y_d - Center)
// A Gaussian process with this kernel is Bayesian linear regression.
type Linear struct {
	Bias   float64
	Scale  float64
	Center float64
}

func (k Linear) Covariance(x, y []float64) float64 {
	if len(x) != len(y) {
		panic("fit: length mismatch")
	}
	var dot float64
	for i := range x {
		dot += (x[i] - k.Center) * (y[i] - k.Center)
	}
	return k.Bias + k.Scale*dot
}

func scaledDistance(x, y, length []float64) float64 {
	if len(x) != len(y) {
		panic("fit: length mismatch")
	}
	if length != nil && len(length) != len(x) {
		panic("fit: length factor mismatch")
	}
	var sum float64
	for i := range x {
		d := x[i] - y[i]
		if length != nil {
			d /= length[i]
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}
