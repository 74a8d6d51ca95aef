package simulate

import "math"

// Dormand–Prince 5(4) tableau.
const (
	a21 = 1.0 / 5
	a31 = 3.0 / 40
	a32 = 9.0 / 40
	a41 = 44.0 / 45
	a42 = -56.0 / 15
	a43 = 32.0 / 9
	a51 = 19372.0 / 6561
	a52 = -25360.0 / 2187
	a53 = 64448.0 / 6561
	a54 = -212.0 / 729
	a61 = 9017.0 / 3168
	a62 = -355.0 / 33
	a63 = 46732.0 / 5247
	a64 = 49.0 / 176
	a65 = -5103.0 / 18656
	a71 = 35.0 / 384
	a73 = 500.0 / 1113
	a74 = 125.0 / 192
	a75 = -2187.0 / 6784
	a76 = 11.0 / 84

	e1 = 71.0 / 57600
	e3 = -71.0 / 16695
	e4 = 71.0 / 1920
	e5 = -17253.0 / 339200
	e6 = 22.0 / 525
	e7 = -1.0 / 40
)

// dormandPrince is the explicit Dormand–Prince 5(4) pair with FSAL,
// cubic Hermite dense output and the stiffness test of Hairer and Wanner.
type dormandPrince struct {
	s    *System
	opts Options

	k1, k2, k3, k4, k5, k6, k7 []float64
	tmp, ynew, ysti            []float64
	y                          []float64
	h                          float64

	// stiffness detection
	stiffHits, calmHits int
	stiff               bool
}

func newDormandPrince(s *System, y []float64, opts Options) *dormandPrince {
	n := len(y)
	vec := func() []float64 { return make([]float64, n) }
	d := &dormandPrince{
		s: s, opts: opts,
		k1: vec(), k2: vec(), k3: vec(), k4: vec(), k5: vec(), k6: vec(), k7: vec(),
		tmp: vec(), ynew: vec(), ysti: vec(),
	}
	s.derivatives(y, d.k1)
	return d
}

func (d *dormandPrince) method() Method    { return MethodExplicit }
func (d *dormandPrince) exponent() float64 { return 0.2 }

func (d *dormandPrince) try(y []float64, h float64) (float64, bool) {
	d.y, d.h = y, h
	s, tmp := d.s, d.tmp
	k1, k2, k3, k4, k5, k6, k7 := d.k1, d.k2, d.k3, d.k4, d.k5, d.k6, d.k7

	for i := range tmp {
		tmp[i] = y[i] + h*a21*k1[i]
	}
	s.derivatives(tmp, k2)
	for i := range tmp {
		tmp[i] = y[i] + h*(a31*k1[i]+a32*k2[i])
	}
	s.derivatives(tmp, k3)
	for i := range tmp {
		tmp[i] = y[i] + h*(a41*k1[i]+a42*k2[i]+a43*k3[i])
	}
	s.derivatives(tmp, k4)
	for i := range tmp {
		tmp[i] = y[i] + h*(a51*k1[i]+a52*k2[i]+a53*k3[i]+a54*k4[i])
	}
	s.derivatives(tmp, k5)
	for i := range tmp {
		d.ysti[i] = y[i] + h*(a61*k1[i]+a62*k2[i]+a63*k3[i]+a64*k4[i]+a65*k5[i])
	}
	s.derivatives(d.ysti, k6)
	for i := range d.ynew {
		d.ynew[i] = y[i] + h*(a71*k1[i]+a73*k3[i]+a74*k4[i]+a75*k5[i]+a76*k6[i])
	}
	s.derivatives(d.ynew, k7)

	if !finite(d.ynew) || !finite(k7) {
		return 0, false
	}
	var sum float64
	for i := range y {
		e := h * (e1*k1[i] + e3*k3[i] + e4*k4[i] + e5*k5[i] + e6*k6[i] + e7*k7[i])
		r := e / (d.opts.AbsTol + d.opts.RelTol*math.Max(math.Abs(y[i]), math.Abs(d.ynew[i])))
		sum += r * r
	}
	return rms(sum, len(y)), true
}

func (d *dormandPrince) dense(out []float64, theta float64) {
	hermite(out, d.y, d.k1, d.ynew, d.k7, d.h, theta)
}

func (d *dormandPrince) accept(y []float64) {
	// h*|lambda| estimated from the last two stages; the explicit pair is
	// stability bound once it stays above 3.25.
	var num, den float64
	for i := range y {
		a := d.k7[i] - d.k6[i]
		b := d.ynew[i] - d.ysti[i]
		num += a * a
		den += b * b
	}
	if den > 0 {
		if d.h*math.Sqrt(num/den) > 3.25 {
			d.calmHits = 0
			d.stiffHits++
			if d.stiffHits >= 15 {
				d.stiff = true
			}
		} else {
			d.calmHits++
			if d.calmHits == 6 {
				d.stiffHits = 0
			}
		}
	}
	copy(y, d.ynew)
	copy(d.k1, d.k7)
}

// hermite interpolates between (y0, f0) and (y1, f1) over a step of size h.
func hermite(out, y0, f0, y1, f1 []float64, h, theta float64) {
	t2 := theta * theta
	t3 := t2 * theta
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + theta
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	for i := range out {
		out[i] = h00*y0[i] + h10*h*f0[i] + h01*y1[i] + h11*h*f1[i]
	}
}
