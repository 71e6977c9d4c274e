package stats

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPearson(t *testing.T) {
	t.Run("perfect positive", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{2, 4, 6, 8, 10}
		assert.InDelta(t, 1.0, Pearson(x, y), 1e-12)
	})

	t.Run("perfect negative", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{10, 8, 6, 4, 2}
		assert.InDelta(t, -1.0, Pearson(x, y), 1e-12)
	})

	t.Run("known value", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{2, 1, 4, 3, 5}
		// Hand-computed: r = 0.8
		assert.InDelta(t, 0.8, Pearson(x, y), 1e-12)
	})

	t.Run("pairwise complete skips NaN positions", func(t *testing.T) {
		x := []float64{1, 2, math.NaN(), 4, 5}
		y := []float64{2, 4, 100, 8, 10}
		assert.InDelta(t, 1.0, Pearson(x, y), 1e-12)
	})

	t.Run("zero variance is undefined", func(t *testing.T) {
		x := []float64{3, 3, 3, 3}
		y := []float64{1, 2, 3, 4}
		assert.True(t, math.IsNaN(Pearson(x, y)))
	})
}

func TestZScores(t *testing.T) {
	z := ZScores([]float64{2, 4, 6})
	assert.InDelta(t, -1.0, z[0], 1e-12)
	assert.InDelta(t, 0.0, z[1], 1e-12)
	assert.InDelta(t, 1.0, z[2], 1e-12)

	flat := ZScores([]float64{5, 5, 5})
	for _, v := range flat {
		assert.Equal(t, 0.0, v)
	}
}

func TestCorPValue(t *testing.T) {
	t.Run("reference value", func(t *testing.T) {
		// r=0.5, n=10: t=1.632993, df=8, two-sided p ~ 0.141 (R cor.test).
		p := CorPValue(0.5, 10)
		assert.InDelta(t, 0.141, p, 1e-3)
	})

	t.Run("zero correlation", func(t *testing.T) {
		assert.InDelta(t, 1.0, CorPValue(0, 20), 1e-12)
	})

	t.Run("closed forms at small df", func(t *testing.T) {
		// df=1 is Cauchy: r=0.5, n=3 gives t=1/sqrt(3), p = 1 - 2*atan(t)/pi = 2/3.
		assert.InDelta(t, 2.0/3.0, CorPValue(0.5, 3), 1e-9)
		// df=2: r=0.5, n=4 gives t=sqrt(2/3), p = 1 - t/sqrt(2+t^2) = 1/2.
		assert.InDelta(t, 0.5, CorPValue(0.5, 4), 1e-9)
	})

	t.Run("monotone in correlation strength", func(t *testing.T) {
		p5 := CorPValue(0.5, 20)
		p7 := CorPValue(0.7, 20)
		p9 := CorPValue(0.9, 20)
		assert.Greater(t, p5, p7)
		assert.Greater(t, p7, p9)
		assert.Greater(t, p9, 0.0)
		assert.Less(t, p9, 1e-6)
	})

	t.Run("perfect correlation", func(t *testing.T) {
		assert.Equal(t, 0.0, CorPValue(1, 10))
		assert.Equal(t, 0.0, CorPValue(-1, 10))
	})

	t.Run("sign symmetric", func(t *testing.T) {
		assert.InDelta(t, CorPValue(0.6, 15), CorPValue(-0.6, 15), 1e-14)
	})

	t.Run("undefined inputs", func(t *testing.T) {
		assert.True(t, math.IsNaN(CorPValue(math.NaN(), 10)))
		assert.True(t, math.IsNaN(CorPValue(0.5, 2)))
	})
}

func TestBenjaminiHochberg(t *testing.T) {
	t.Run("known adjustment", func(t *testing.T) {
		raw := []float64{0.005, 0.011, 0.02, 0.04}
		adj := BenjaminiHochberg(raw)
		require.Len(t, adj, 4)
		assert.InDelta(t, 0.02, adj[0], 1e-12)
		assert.InDelta(t, 0.022, adj[1], 1e-12)
		assert.InDelta(t, 0.0266666667, adj[2], 1e-9)
		assert.InDelta(t, 0.04, adj[3], 1e-12)
	})

	t.Run("adjusted never below raw and capped at one", func(t *testing.T) {
		raw := []float64{0.9, 0.02, 0.5, 0.001, 0.3, 0.7, 0.04}
		adj := BenjaminiHochberg(raw)
		for i := range raw {
			assert.GreaterOrEqual(t, adj[i], raw[i], "index %d", i)
			assert.LessOrEqual(t, adj[i], 1.0, "index %d", i)
		}
	})

	t.Run("monotone when sorted by raw p", func(t *testing.T) {
		raw := []float64{0.9, 0.02, 0.5, 0.001, 0.3, 0.7, 0.04, 0.04}
		adj := BenjaminiHochberg(raw)
		order := make([]int, len(raw))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return raw[order[a]] < raw[order[b]] })
		for k := 1; k < len(order); k++ {
			assert.GreaterOrEqual(t, adj[order[k]], adj[order[k-1]])
		}
	})

	t.Run("NaN stays NaN and does not count as a test", func(t *testing.T) {
		raw := []float64{0.01, math.NaN(), 0.02}
		adj := BenjaminiHochberg(raw)
		assert.True(t, math.IsNaN(adj[1]))
		// m=2, not 3.
		assert.InDelta(t, 0.02, adj[0], 1e-12)
		assert.InDelta(t, 0.02, adj[2], 1e-12)
	})
}
