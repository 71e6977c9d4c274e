// Package stats implements the numeric kernels shared by the QC, association
// and hub-scoring stages: Pearson correlation, Student-t p-values and
// Benjamini-Hochberg FDR adjustment. Everything here is deterministic and
// allocation-light; callers own any parallelism.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of xs. NaN for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStdDev returns the n-1 standard deviation of xs.
// NaN for fewer than two values.
func SampleStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return math.NaN()
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Pearson computes the Pearson correlation of x and y over pairwise-complete
// observations: positions where either value is NaN are skipped. Returns NaN
// when fewer than two complete pairs exist or either side has zero variance.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	var sx, sy, sxx, syy, sxy float64
	m := 0
	for i := 0; i < n; i++ {
		xi, yi := x[i], y[i]
		if math.IsNaN(xi) || math.IsNaN(yi) {
			continue
		}
		sx += xi
		sy += yi
		sxx += xi * xi
		syy += yi * yi
		sxy += xi * yi
		m++
	}
	if m < 2 {
		return math.NaN()
	}
	fm := float64(m)
	cov := sxy - sx*sy/fm
	vx := sxx - sx*sx/fm
	vy := syy - sy*sy/fm
	if vx <= 0 || vy <= 0 {
		return math.NaN()
	}
	r := cov / math.Sqrt(vx*vy)
	// Guard rounding drift outside [-1, 1].
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// ZScores normalizes xs to z-scores using the sample (n-1) standard
// deviation, matching R's scale(). A zero-variance input yields all zeros.
func ZScores(xs []float64) []float64 {
	z := make([]float64, len(xs))
	m := Mean(xs)
	sd := SampleStdDev(xs)
	if sd == 0 || math.IsNaN(sd) {
		return z
	}
	for i, x := range xs {
		z[i] = (x - m) / sd
	}
	return z
}

// CorPValue converts a Pearson correlation r over n paired samples into a
// two-sided p-value via the Student-t relation t = r*sqrt((n-2)/(1-r^2))
// with n-2 degrees of freedom. Perfect correlations return 0; undefined
// inputs (NaN r, n < 3) return NaN.
func CorPValue(r float64, n int) float64 {
	if math.IsNaN(r) || n < 3 {
		return math.NaN()
	}
	ar := math.Abs(r)
	if ar >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return tTwoSided(t, df)
}

// tTwoSided returns P(|T| >= |t|) for a Student-t variable with df degrees
// of freedom, via the regularized incomplete beta function:
//
//	p = I_{df/(df+t^2)}(df/2, 1/2)
func tTwoSided(t, df float64) float64 {
	x := df / (df + t*t)
	return regIncBeta(df/2, 0.5, x)
}

// regIncBeta computes the regularized incomplete beta function I_x(a, b)
// using the continued fraction expansion (Lentz's method).
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lbeta, _ := math.Lgamma(a + b)
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	front := math.Exp(lbeta - la - lb + a*math.Log(x) + b*math.Log(1-x))
	// The continued fraction converges fast for x < (a+1)/(a+b+2);
	// otherwise use the symmetry I_x(a,b) = 1 - I_{1-x}(b,a).
	if x >= (a+1)/(a+b+2) {
		return 1 - regIncBeta(b, a, 1-x)
	}
	const (
		maxIter = 300
		eps     = 3e-14
		tiny    = 1e-300
	)
	c := 1.0
	d := 1 - (a+b)*x/(a+1)
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d
	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		// Even step.
		num := fm * (b - fm) * x / ((a + 2*fm - 1) * (a + 2*fm))
		d = 1 + num*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + num/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c
		// Odd step.
		num = -(a + fm) * (a + b + fm) * x / ((a + 2*fm) * (a + 2*fm + 1))
		d = 1 + num*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + num/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return front * h / a
}

// BenjaminiHochberg applies the Benjamini-Hochberg step-up FDR adjustment to
// raw p-values, returned in the input order. NaN inputs stay NaN and do not
// count toward the number of tests.
func BenjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	adj := make([]float64, n)
	idx := make([]int, 0, n)
	for i, p := range pvals {
		if math.IsNaN(p) {
			adj[i] = math.NaN()
			continue
		}
		idx = append(idx, i)
	}
	m := len(idx)
	if m == 0 {
		return adj
	}
	sort.Slice(idx, func(a, b int) bool { return pvals[idx[a]] < pvals[idx[b]] })
	// Step up from the largest p, carrying the running minimum so adjusted
	// values are monotone in the raw ordering.
	minAdj := math.Inf(1)
	for k := m - 1; k >= 0; k-- {
		i := idx[k]
		v := pvals[i] * float64(m) / float64(k+1)
		if v < minAdj {
			minAdj = v
		}
		if minAdj > 1 {
			adj[i] = 1
		} else {
			adj[i] = minAdj
		}
	}
	return adj
}
