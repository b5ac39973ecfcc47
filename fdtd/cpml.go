package fdtd

import (
	"math"
)

// cpmlProfile holds the per-position recursive-convolution coefficients for
// one axis. Interior positions carry b = c = 0, so the memory variables
// stay zero outside the absorbing shell.
//
//	b = exp(-(sigma/kappa + alpha) * dt / eps0)
//	c = sigma * (b - 1) / (sigma*kappa + alpha*kappa^2)
type cpmlProfile struct {
	b, c []float64
	// kInv is 1/kappa, the coordinate-stretch factor applied to the field
	// derivative itself. It is 1 everywhere when stretching is disabled.
	kInv []float64
}

// newCPMLProfile grades conductivity polynomially from zero at the interior
// interface to sigmaMax at the outer edge of both shells along an axis of n
// positions.
func newCPMLProfile(n int, cellSize, dt float64, pml PMLConfig) cpmlProfile {
	p := cpmlProfile{
		b:    make([]float64, n),
		c:    make([]float64, n),
		kInv: make([]float64, n),
	}
	for i := range p.kInv {
		p.kInv[i] = 1
	}
	if pml.Thickness == 0 {
		return p
	}

	sigmaMax := pml.SigmaMax
	if sigmaMax <= 0 {
		sigmaMax = OptimalSigmaMax(cellSize, pml.Order)
	}
	kappaMax := pml.KappaMax
	if kappaMax < 1 {
		kappaMax = 1
	}

	thickness := float64(pml.Thickness)
	for i := 0; i < n; i++ {
		// Normalized depth into the shell: 0 at the interface, 1 at the
		// outer boundary.
		var rho float64
		switch {
		case i < pml.Thickness:
			rho = float64(pml.Thickness-i) / thickness
		case i >= n-pml.Thickness:
			rho = float64(i-(n-pml.Thickness-1)) / thickness
		}
		if rho == 0 {
			continue
		}

		rhoPow := math.Pow(rho, pml.Order)
		sigma := sigmaMax * rhoPow
		kappa := 1 + (kappaMax-1)*rhoPow
		alpha := pml.AlphaMax * (1 - rho)

		p.kInv[i] = 1 / kappa
		p.b[i] = math.Exp(-(sigma/kappa + alpha) * dt / Eps0)
		denom := sigma*kappa + alpha*kappa*kappa
		if math.Abs(denom) > 1e-20 {
			p.c[i] = sigma * (p.b[i] - 1) / denom
		}
	}

	return p
}

// inShell returns true when position i lies inside either absorbing shell
// of an axis with n positions.
func inShell(i, n, thickness int) bool {
	return i < thickness || i >= n-thickness
}
