package risk

import (
	"math"
	"sort"
)

// gini computes the Gini coefficient of a distribution, 0 for perfect
// equality approaching 1 for perfect inequality.
func gini(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	var sum, weighted float64
	for i, v := range sorted {
		sum += v
		weighted += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}
	return (2*weighted)/(n*sum) - (n+1)/n
}

// hhi computes the Herfindahl-Hirschman Index over percentage market
// shares. Range 0 to 10000; n equal holders score 10000/n.
func hhi(values []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		share := v / total * 100
		sum += share * share
	}
	return sum
}

// topNDominance returns the percentage of total held by the n largest
// values.
func topNDominance(values []float64, total float64, n int) float64 {
	if total == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	if n > len(sorted) {
		n = len(sorted)
	}
	var top float64
	for _, v := range sorted[:n] {
		top += v
	}
	return top / total * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdev is the population standard deviation.
func stdev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. Zero variance in either series yields 0 rather than NaN.
func pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	mx, my := mean(x), mean(y)
	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// pctReturns converts a price series to day-over-day percentage returns.
func pctReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	return returns
}
