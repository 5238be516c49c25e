package classify

import (
	"math"
	"sort"
)

// MaxBoundCount caps the number of break values. Five classes need six
// bounds: the minimum, the maximum and four separators.
const MaxBoundCount = 6

// ClassCount returns how many classes the distinct values support.
// Zero or less means no classification is possible.
func ClassCount(values []float64) int {
	return min(len(values), MaxBoundCount) - 1
}

// Breaks returns classCount+1 non-decreasing bounds spanning the values.
// It returns an empty slice when values is empty or classCount <= 0, and for
// Logarithmic when any value is not strictly positive. Callers fall back to a
// constant style in that case.
func Breaks(values []float64, method Method, classCount int) []float64 {
	if len(values) == 0 || classCount <= 0 {
		return []float64{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	switch method {
	case Equidistant:
		return equidistant(sorted, classCount)
	case Logarithmic:
		return logarithmic(sorted, classCount)
	case NaturalBreaks:
		if len(sorted) <= classCount {
			return quantile(sorted, classCount)
		}
		return jenks(sorted, classCount)
	default:
		return quantile(sorted, classCount)
	}
}

func quantile(sorted []float64, n int) []float64 {
	out := make([]float64, 0, n+1)
	out = append(out, sorted[0])
	for i := 1; i < n; i++ {
		p := float64(len(sorted)-1) * float64(i) / float64(n)
		pb := math.Floor(p)
		lo := int(pb)
		if pb == p {
			out = append(out, sorted[lo])
			continue
		}
		pr := p - pb
		out = append(out, sorted[lo]*(1-pr)+sorted[lo+1]*pr)
	}
	return append(out, sorted[len(sorted)-1])
}

func equidistant(sorted []float64, n int) []float64 {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	out := make([]float64, 0, n+1)
	out = append(out, lo)
	for i := 1; i < n; i++ {
		out = append(out, lo+float64(i)*(hi-lo)/float64(n))
	}
	return append(out, hi)
}

func logarithmic(sorted []float64, n int) []float64 {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo <= 0 {
		return []float64{}
	}
	llo, lhi := math.Log10(lo), math.Log10(hi)
	out := make([]float64, 0, n+1)
	out = append(out, lo)
	for i := 1; i < n; i++ {
		out = append(out, math.Pow(10, llo+float64(i)*(lhi-llo)/float64(n)))
	}
	return append(out, hi)
}

// jenks is the Fisher-Jenks optimal partition of sorted into n classes
// minimising the within-class sum of squared deviations.
func jenks(sorted []float64, n int) []float64 {
	m := len(sorted)

	lower := make([][]int, m+1)
	variance := make([][]float64, m+1)
	for i := range lower {
		lower[i] = make([]int, n+1)
		variance[i] = make([]float64, n+1)
	}
	for j := 1; j <= n; j++ {
		lower[1][j] = 1
		for i := 2; i <= m; i++ {
			variance[i][j] = math.Inf(1)
		}
	}

	for l := 2; l <= m; l++ {
		var sum, sumSq, w, v float64
		for k := 1; k <= l; k++ {
			lowIdx := l - k + 1
			val := sorted[lowIdx-1]
			sumSq += val * val
			sum += val
			w++
			v = sumSq - (sum*sum)/w
			prev := lowIdx - 1
			if prev == 0 {
				continue
			}
			for j := 2; j <= n; j++ {
				if variance[l][j] >= v+variance[prev][j-1] {
					lower[l][j] = lowIdx
					variance[l][j] = v + variance[prev][j-1]
				}
			}
		}
		lower[l][1] = 1
		variance[l][1] = v
	}

	out := make([]float64, n+1)
	out[0] = sorted[0]
	out[n] = sorted[m-1]
	k := m
	for j := n; j >= 2; j-- {
		idx := lower[k][j] - 2
		out[j-1] = sorted[idx]
		k = lower[k][j] - 1
	}
	return out
}
