package fraud

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
)

const eulerGamma = 0.5772156649015329

// node is either an internal split or a leaf holding Size training points.
type node struct {
	Feature int     `json:"f,omitempty"`
	Split   float64 `json:"s,omitempty"`
	Left    *node   `json:"l,omitempty"`
	Right   *node   `json:"r,omitempty"`
	Size    int     `json:"n,omitempty"`
}

func (n *node) leaf() bool {
	return n.Left == nil && n.Right == nil
}

// Forest is an isolation forest: an ensemble of random binary trees where
// anomalies end up isolated on short paths.
type Forest struct {
	Trees       []*node `json:"trees"`
	SampleSize  int     `json:"sample_size"`
	HeightLimit int     `json:"height_limit"`
}

// fitForest grows trees over X, each on a random sub-sample of at most
// maxSamples rows drawn without replacement.
func fitForest(X [][]float64, trees, maxSamples int, rng *rand.Rand) (*Forest, error) {
	n := len(X)
	if n < 2 {
		return nil, errors.New("isolation forest needs at least two samples")
	}
	if trees < 1 {
		return nil, errors.New("isolation forest needs at least one tree")
	}
	psi := min(maxSamples, n)
	f := &Forest{
		Trees:       make([]*node, 0, trees),
		SampleSize:  psi,
		HeightLimit: int(math.Ceil(math.Log2(float64(psi)))),
	}
	for range trees {
		idx := rng.Perm(n)[:psi]
		f.Trees = append(f.Trees, grow(X, idx, 0, f.HeightLimit, rng))
	}
	return f, nil
}

func grow(X [][]float64, idx []int, depth, limit int, rng *rand.Rand) *node {
	if depth >= limit || len(idx) <= 1 {
		return &node{Size: len(idx)}
	}

	// pick a random feature that still varies within this partition
	dims := len(X[idx[0]])
	for _, feature := range rng.Perm(dims) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := X[i][feature]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if lo == hi {
			continue
		}
		split := lo + rng.Float64()*(hi-lo)

		var left, right []int
		for _, i := range idx {
			if X[i][feature] < split {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		return &node{
			Feature: feature,
			Split:   split,
			Left:    grow(X, left, depth+1, limit, rng),
			Right:   grow(X, right, depth+1, limit, rng),
		}
	}
	return &node{Size: len(idx)}
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
// in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

func pathLength(x []float64, n *node, depth int) float64 {
	for !n.leaf() {
		if x[n.Feature] < n.Split {
			n = n.Left
		} else {
			n = n.Right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.Size)
}

// Score returns s(x) = 2^(-E[h(x)]/c(ψ)) in (0, 1]. Values close to 1 are
// anomalies, values well below 0.5 are normal.
func (f *Forest) Score(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var total float64
	for _, t := range f.Trees {
		total += pathLength(x, t, 0)
	}
	mean := total / float64(len(f.Trees))
	c := averagePathLength(f.SampleSize)
	if c == 0 {
		return 1
	}
	return math.Pow(2, -mean/c)
}

// quantile returns the q-th quantile of values using linear interpolation
// between closest ranks.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
