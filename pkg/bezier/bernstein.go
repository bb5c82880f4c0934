// Package bezier implements the Bernstein basis used by Bezier curves,
// surfaces and volumes.
package bezier

import "math"

// Binomial returns the binomial coefficient C(n, k).
// Out-of-range k yields 0. The product is built iteratively over the smaller
// of k and n-k so intermediate values stay close to the result.
func Binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k == 0 || k == n {
		return 1
	}
	if k > n-k {
		k = n - k
	}
	res := 1.0
	for i := 1; i <= k; i++ {
		res = res * float64(n-i+1) / float64(i)
	}
	return res
}

// Bernstein returns the i-th Bernstein polynomial of degree n at t:
// C(n,i) * t^i * (1-t)^(n-i).
func Bernstein(i, n int, t float64) float64 {
	return Binomial(n, i) * math.Pow(t, float64(i)) * math.Pow(1-t, float64(n-i))
}

// Basis writes all n+1 Bernstein values of degree n at t into dst and
// returns it. dst is grown when it is too short; pass the previous result
// back in to avoid allocating per call.
func Basis(n int, t float64, dst []float64) []float64 {
	if n < 0 {
		return dst[:0]
	}
	if cap(dst) < n+1 {
		dst = make([]float64, n+1)
	}
	dst = dst[:n+1]
	for i := 0; i <= n; i++ {
		dst[i] = Bernstein(i, n, t)
	}
	return dst
}
