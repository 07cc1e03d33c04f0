// Package polynomial implements dense univariate polynomial arithmetic,
// least-squares fitting, and real-root solving for the certificate failure-time
// contract (degree-(n-1) interpolation over n samples, roots strictly above a
// threshold).
package polynomial

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularFit is returned by Fit when the Vandermonde system has no unique
// solution (e.g. duplicate sample times).
var ErrSingularFit = errors.New("polynomial: singular fit")

// ErrSampleMismatch is returned by Fit when times and values have different
// lengths.
var ErrSampleMismatch = errors.New("polynomial: times and values length mismatch")

// rootImagTolerance bounds how far an eigenvalue's imaginary part may be from
// zero before it is discarded as a complex (non-real) root.
const rootImagTolerance = 1e-9

// Polynomial is a dense-coefficient univariate polynomial, lowest degree
// first: Coeffs[i] is the coefficient of x^i. A nil or empty Polynomial
// evaluates to zero everywhere.
type Polynomial struct {
	Coeffs []float64
}

// Constant returns the degree-0 polynomial with value x.
func Constant(x float64) Polynomial {
	return Polynomial{Coeffs: []float64{x}}
}

// Degree returns the polynomial's degree, or -1 for the zero polynomial.
func (p Polynomial) Degree() int {
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		if p.Coeffs[i] != 0 {
			return i
		}
	}
	return -1
}

// Eval evaluates the polynomial at x using Horner's method.
func (p Polynomial) Eval(x float64) float64 {
	if len(p.Coeffs) == 0 {
		return 0
	}
	result := p.Coeffs[len(p.Coeffs)-1]
	for i := len(p.Coeffs) - 2; i >= 0; i-- {
		result = result*x + p.Coeffs[i]
	}
	return result
}

// Add returns p + q.
func (p Polynomial) Add(q Polynomial) Polynomial {
	n := max(len(p.Coeffs), len(q.Coeffs))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = coeffAt(p, i) + coeffAt(q, i)
	}
	return Polynomial{Coeffs: out}
}

// Sub returns p - q.
func (p Polynomial) Sub(q Polynomial) Polynomial {
	n := max(len(p.Coeffs), len(q.Coeffs))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = coeffAt(p, i) - coeffAt(q, i)
	}
	return Polynomial{Coeffs: out}
}

// Scale returns p multiplied by the scalar k.
func (p Polynomial) Scale(k float64) Polynomial {
	out := make([]float64, len(p.Coeffs))
	for i, c := range p.Coeffs {
		out[i] = c * k
	}
	return Polynomial{Coeffs: out}
}

// Mul returns the product p * q.
func (p Polynomial) Mul(q Polynomial) Polynomial {
	if len(p.Coeffs) == 0 || len(q.Coeffs) == 0 {
		return Polynomial{}
	}
	out := make([]float64, len(p.Coeffs)+len(q.Coeffs)-1)
	for i, a := range p.Coeffs {
		if a == 0 {
			continue
		}
		for j, b := range q.Coeffs {
			out[i+j] += a * b
		}
	}
	return Polynomial{Coeffs: out}
}

func coeffAt(p Polynomial, i int) float64 {
	if i < len(p.Coeffs) {
		return p.Coeffs[i]
	}
	return 0
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Fit returns the unique degree-(n-1) polynomial interpolating the n
// (time, value) samples, solved via the Vandermonde system. Returns
// ErrSampleMismatch on length mismatch and ErrSingularFit if the system has
// no unique solution (e.g. two samples share a time). Callers (axis.Axis)
// treat a non-nil error as "prediction unavailable" per spec, never panic.
func Fit(times, values []float64) (Polynomial, error) {
	n := len(times)
	if n != len(values) {
		return Polynomial{}, ErrSampleMismatch
	}
	if n == 0 {
		return Polynomial{}, ErrSingularFit
	}

	vander := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		x := 1.0
		for j := 0; j < n; j++ {
			vander.Set(i, j, x)
			x *= times[i]
		}
	}
	b := mat.NewDense(n, 1, append([]float64(nil), values...))

	var coeffs mat.Dense
	if err := coeffs.Solve(vander, b); err != nil {
		return Polynomial{}, ErrSingularFit
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = coeffs.At(i, 0)
	}
	return Polynomial{Coeffs: out}, nil
}

// RealRootsAbove returns every real root of p strictly greater than t0, found
// via the eigenvalues of the polynomial's companion matrix. Roots are
// returned in ascending order. A constant or zero polynomial has no roots.
func (p Polynomial) RealRootsAbove(t0 float64) []float64 {
	deg := p.Degree()
	if deg <= 0 {
		return nil
	}

	companion := mat.NewDense(deg, deg, nil)
	lead := p.Coeffs[deg]
	for i := 0; i < deg; i++ {
		companion.Set(0, i, -p.Coeffs[deg-1-i]/lead)
	}
	for i := 1; i < deg; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenRight); !ok {
		return nil
	}

	var roots []float64
	for _, v := range eig.Values(nil) {
		if math.Abs(imag(v)) > rootImagTolerance {
			continue
		}
		r := real(v)
		if r > t0 {
			roots = append(roots, r)
		}
	}
	sortFloats(roots)
	return roots
}

// SmallestRootAbove returns the smallest real root of p strictly greater
// than t0, or false if none exists. This backs Certificate.FailureTime for
// certificates expressible as "p(t) >= 0 fails at the first root above now".
func (p Polynomial) SmallestRootAbove(t0 float64) (float64, bool) {
	roots := p.RealRootsAbove(t0)
	if len(roots) == 0 {
		return 0, false
	}
	return roots[0], true
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
