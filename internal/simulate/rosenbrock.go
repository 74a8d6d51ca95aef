package simulate

import "math"

// Rosenbrock 2(3) coefficients of Shampine and Reichelt.
var (
	rosD   = 1 / (2 + math.Sqrt2)
	rosE32 = 6 + math.Sqrt2
)

// jacobianFloor is the smallest perturbation scale of a state variable in
// the finite-difference Jacobian.
const jacobianFloor = 1e-6

// rosenbrock is the L-stable linearly implicit Rosenbrock 2(3) pair. Every
// stage solves with W = I - h*d*J, where J is a forward-difference Jacobian
// evaluated once per accepted state.
type rosenbrock struct {
	s    *System
	n    int
	opts Options

	jac, w                 []float64 // n*n, row major
	piv                    []int
	f0, f1, f2, k1, k2, k3 []float64
	tmp, ynew              []float64
	y                      []float64
	h                      float64
	haveF0, haveJac        bool
}

func newRosenbrock(s *System, n int, opts Options) *rosenbrock {
	vec := func() []float64 { return make([]float64, n) }
	return &rosenbrock{
		s: s, n: n, opts: opts,
		jac: make([]float64, n*n), w: make([]float64, n*n), piv: make([]int, n),
		f0: vec(), f1: vec(), f2: vec(), k1: vec(), k2: vec(), k3: vec(),
		tmp: vec(), ynew: vec(),
	}
}

func (r *rosenbrock) method() Method    { return MethodStiff }
func (r *rosenbrock) exponent() float64 { return 1.0 / 3 }

func (r *rosenbrock) try(y []float64, h float64) (float64, bool) {
	r.y, r.h = y, h
	n := r.n
	if !r.haveF0 {
		r.s.derivatives(y, r.f0)
		if !finite(r.f0) {
			return 0, false
		}
		r.haveF0 = true
	}
	if !r.haveJac {
		if !r.jacobian(y) {
			return 0, false
		}
		r.haveJac = true
	}

	hd := h * rosD
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r.w[i*n+j] = -hd * r.jac[i*n+j]
		}
		r.w[i*n+i]++
	}
	if !luFactor(r.w, n, r.piv) {
		return 0, false
	}

	copy(r.k1, r.f0)
	luSolve(r.w, n, r.piv, r.k1)

	for i := range r.tmp {
		r.tmp[i] = y[i] + 0.5*h*r.k1[i]
	}
	r.s.derivatives(r.tmp, r.f1)
	for i := range r.k2 {
		r.k2[i] = r.f1[i] - r.k1[i]
	}
	luSolve(r.w, n, r.piv, r.k2)
	for i := range r.k2 {
		r.k2[i] += r.k1[i]
		r.ynew[i] = y[i] + h*r.k2[i]
	}

	r.s.derivatives(r.ynew, r.f2)
	if !finite(r.ynew) || !finite(r.f2) {
		return 0, false
	}
	for i := range r.k3 {
		r.k3[i] = r.f2[i] - rosE32*(r.k2[i]-r.f1[i]) - 2*(r.k1[i]-r.f0[i])
	}
	luSolve(r.w, n, r.piv, r.k3)

	var sum float64
	for i := range y {
		e := h / 6 * (r.k1[i] - 2*r.k2[i] + r.k3[i])
		q := e / (r.opts.AbsTol + r.opts.RelTol*math.Max(math.Abs(y[i]), math.Abs(r.ynew[i])))
		sum += q * q
	}
	return rms(sum, n), true
}

// dense is the continuous extension of the pair, exact at both ends of the
// step.
func (r *rosenbrock) dense(out []float64, theta float64) {
	c1 := theta * (1 - theta) / (1 - 2*rosD)
	c2 := theta * (theta - 2*rosD) / (1 - 2*rosD)
	for i := range out {
		out[i] = r.y[i] + r.h*(c1*r.k1[i]+c2*r.k2[i])
	}
}

func (r *rosenbrock) accept(y []float64) {
	copy(y, r.ynew)
	copy(r.f0, r.f2)
	r.haveJac = false
}

// jacobian fills r.jac with forward differences of the derivatives at y,
// using r.f0 as the unperturbed value.
func (r *rosenbrock) jacobian(y []float64) bool {
	n := r.n
	copy(r.tmp, y)
	for j := 0; j < n; j++ {
		r.tmp[j] = y[j] + math.Sqrt(epsilon)*math.Max(math.Abs(y[j]), jacobianFloor)
		delta := r.tmp[j] - y[j]
		r.s.derivatives(r.tmp, r.f1)
		for i := 0; i < n; i++ {
			r.jac[i*n+j] = (r.f1[i] - r.f0[i]) / delta
		}
		r.tmp[j] = y[j]
	}
	return finite(r.jac)
}

const epsilon = 0x1p-52

// luFactor overwrites the n×n row-major matrix a with its LU factors under
// partial pivoting, recording row swaps in piv. It reports false when a is
// numerically singular.
func luFactor(a []float64, n int, piv []int) bool {
	for k := 0; k < n; k++ {
		p, best := k, math.Abs(a[k*n+k])
		for i := k + 1; i < n; i++ {
			if v := math.Abs(a[i*n+k]); v > best {
				p, best = i, v
			}
		}
		if best == 0 || math.IsNaN(best) || math.IsInf(best, 0) {
			return false
		}
		piv[k] = p
		if p != k {
			for j := 0; j < n; j++ {
				a[k*n+j], a[p*n+j] = a[p*n+j], a[k*n+j]
			}
		}
		for i := k + 1; i < n; i++ {
			f := a[i*n+k] / a[k*n+k]
			a[i*n+k] = f
			if f == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				a[i*n+j] -= f * a[k*n+j]
			}
		}
	}
	return true
}

// luSolve solves a x = b in place for the factors of luFactor.
func luSolve(a []float64, n int, piv []int, b []float64) {
	for k := 0; k < n; k++ {
		if p := piv[k]; p != k {
			b[k], b[p] = b[p], b[k]
		}
	}
	for i := 1; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= a[i*n+j] * b[j]
		}
		b[i] = sum
	}
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= a[i*n+j] * b[j]
		}
		b[i] = sum / a[i*n+i]
	}
}
