package simulate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/vpgen/internal/constants"
)

var (
	// ErrDiverged is returned when the state becomes non-finite.
	ErrDiverged = errors.New("integration diverged")
	// ErrStepLimit is returned when the step budget is exhausted.
	ErrStepLimit = errors.New("integration step limit reached")
	// ErrStepUnderflow is returned when the step size needed to meet the
	// tolerances becomes negligible relative to the current time.
	ErrStepUnderflow = errors.New("integration step size underflow")
)

// Method selects the integration scheme.
type Method string

const (
	// MethodAuto starts with MethodExplicit and continues with MethodStiff
	// once the problem shows stiffness.
	MethodAuto Method = "auto"
	// MethodExplicit is the adaptive Dormand–Prince 5(4) pair.
	MethodExplicit Method = "dopri5"
	// MethodStiff is the L-stable Rosenbrock 2(3) pair of Shampine and
	// Reichelt with a finite-difference Jacobian.
	MethodStiff Method = "rosenbrock23"
)

// Valid reports whether m names a known method. The empty method means
// MethodAuto.
func (m Method) Valid() bool {
	switch m {
	case "", MethodAuto, MethodExplicit, MethodStiff:
		return true
	}
	return false
}

// Options configures Integrate.
type Options struct {
	Start    float64
	End      float64
	Points   int
	RelTol   float64
	AbsTol   float64
	MaxSteps int
	Method   Method
}

// DefaultOptions returns the default horizon and tolerances.
func DefaultOptions() Options {
	return Options{
		Start:    constants.DefaultSimulationStart,
		End:      constants.DefaultSimulationEnd,
		Points:   constants.DefaultSimulationPoints,
		RelTol:   constants.DefaultRelTol,
		AbsTol:   constants.DefaultAbsTol,
		MaxSteps: constants.DefaultMaxSteps,
		Method:   MethodAuto,
	}
}

func (o Options) validate() error {
	if !(o.End > o.Start) {
		return fmt.Errorf("end %g must be after start %g", o.End, o.Start)
	}
	if o.Points < 2 {
		return fmt.Errorf("need at least 2 points, got %d", o.Points)
	}
	if o.RelTol <= 0 || o.AbsTol <= 0 {
		return fmt.Errorf("tolerances must be positive")
	}
	if o.MaxSteps <= 0 {
		return fmt.Errorf("max steps must be positive")
	}
	if !o.Method.Valid() {
		return fmt.Errorf("unknown integration method %q", o.Method)
	}
	return nil
}

// Trajectory holds uniformly spaced samples of every variable.
type Trajectory struct {
	Times   []float64
	Columns []string
	// Values[i][j] is column j at Times[i].
	Values [][]float64

	// Steps counts attempted steps. Method is the scheme that finished the
	// integration.
	Steps  int
	Method Method
}

// Column returns the samples of one variable.
func (t *Trajectory) Column(id string) ([]float64, bool) {
	for j, c := range t.Columns {
		if c == id {
			out := make([]float64, len(t.Values))
			for i, row := range t.Values {
				out[i] = row[j]
			}
			return out, true
		}
	}
	return nil, false
}

// stepper advances the state by one trial step at a time.
type stepper interface {
	// try computes a step of size h from y and returns its weighted RMS
	// error estimate. ok is false when the step produced non-finite values.
	try(y []float64, h float64) (errNorm float64, ok bool)
	// dense writes the solution at fraction theta of the last tried step.
	dense(out []float64, theta float64)
	// accept copies the end of the last tried step into y.
	accept(y []float64)
	// exponent drives the step size controller: h scales with errNorm^-exponent.
	exponent() float64
	method() Method
}

// explicitSwitchSteps bounds the attempted explicit steps of MethodAuto
// before it moves on to the stiff scheme.
const explicitSwitchSteps = 5000

// Integrate solves the system from opts.Start to opts.End and samples it at
// opts.Points uniformly spaced times using the continuous extension of the
// integration scheme between accepted steps.
//
// MethodAuto integrates explicitly while the problem is non-stiff and
// switches to the Rosenbrock scheme once the explicit pair is stability
// bound or stalls.
func Integrate(ctx context.Context, s *System, opts Options) (*Trajectory, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cols := s.Variables()
	traj := &Trajectory{
		Times:   make([]float64, opts.Points),
		Columns: cols,
		Values:  make([][]float64, opts.Points),
	}
	span := opts.End - opts.Start
	for i := range traj.Times {
		traj.Times[i] = opts.Start + span*float64(i)/float64(opts.Points-1)
	}
	rows := make([]float64, opts.Points*len(cols))
	for i := range traj.Values {
		traj.Values[i] = rows[i*len(cols) : (i+1)*len(cols)]
	}

	y := append([]float64(nil), s.initial...)
	if !finite(y) {
		return nil, fmt.Errorf("%w: non-finite initial state", ErrDiverged)
	}
	s.observe(y, traj.Values[0])
	next := 1
	ys := make([]float64, len(y))

	t := opts.Start
	h0 := span / float64(opts.Points)
	h := h0
	auto := opts.Method == "" || opts.Method == MethodAuto
	switchAt := min(explicitSwitchSteps, max(opts.MaxSteps/4, 1))

	var st stepper
	var explicit *dormandPrince
	if opts.Method == MethodStiff {
		st = newRosenbrock(s, len(y), opts)
	} else {
		explicit = newDormandPrince(s, y, opts)
		if !finite(explicit.k1) {
			return nil, fmt.Errorf("%w: non-finite derivative at t=%g", ErrDiverged, t)
		}
		st = explicit
	}
	toStiff := func() {
		st = newRosenbrock(s, len(y), opts)
		explicit = nil
	}
	nonFinite := false

	steps := 0
	for ; next < opts.Points; steps++ {
		if steps%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if steps >= opts.MaxSteps {
			return nil, fmt.Errorf("%w: %d steps at t=%g", ErrStepLimit, steps, t)
		}
		if t+h > opts.End {
			h = opts.End - t
		}
		if h <= 1e-14*math.Max(1, math.Abs(t)) {
			if nonFinite {
				return nil, fmt.Errorf("%w: non-finite state near t=%g", ErrDiverged, t)
			}
			if auto && explicit != nil {
				toStiff()
				h = math.Min(h0, opts.End-t)
				continue
			}
			return nil, fmt.Errorf("%w: at t=%g", ErrStepUnderflow, t)
		}

		errNorm, ok := st.try(y, h)
		if !ok || math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			nonFinite = true
			h *= 0.25
			continue
		}
		if errNorm > 1 {
			h *= math.Max(0.2, 0.9*math.Pow(errNorm, -st.exponent()))
			continue
		}

		// Accepted: emit every sample in (t, t+h].
		tNew := t + h
		if opts.End-tNew <= 1e-12*math.Max(1, math.Abs(opts.End)) {
			tNew = opts.End
		}
		for next < opts.Points && traj.Times[next] <= tNew {
			st.dense(ys, (traj.Times[next]-t)/h)
			s.observe(ys, traj.Values[next])
			next++
		}
		st.accept(y)
		t = tNew
		nonFinite = false

		factor := 5.0
		if errNorm > 0 {
			factor = math.Min(5, math.Max(0.2, 0.9*math.Pow(errNorm, -st.exponent())))
		}
		h *= factor
		if t >= opts.End {
			steps++
			break
		}
		if auto && explicit != nil && (explicit.stiff || steps+1 >= switchAt) {
			toStiff()
		}
	}
	traj.Steps = steps
	traj.Method = st.method()

	// Rounding may leave the last sample unfilled.
	for ; next < opts.Points; next++ {
		s.observe(y, traj.Values[next])
	}
	for _, row := range traj.Values {
		if !finite(row) {
			return nil, fmt.Errorf("%w: non-finite sample", ErrDiverged)
		}
	}
	return traj, nil
}

func rms(sumSquares float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSquares / float64(n))
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
