// Package nurbs evaluates non-rational B-spline surface patches: points,
// partial derivatives and closest-parameter recovery. The algorithms
// follow The NURBS Book (Piegl & Tiller, 2nd edition): knot span lookup
// (A2.1), basis functions (A2.2), derivative basis functions (A2.3) and
// surface evaluation (A3.5, A3.6).
package nurbs

import "fmt"

// KnotVector is a nondecreasing sequence of knot values.
type KnotVector []float64

// FromMultiplicities expands a compact (knots, multiplicities) pair into
// a full knot vector, as stored in STEP B-spline records.
func FromMultiplicities(knots []float64, multiplicities []int) (KnotVector, error) {
	if len(knots) != len(multiplicities) {
		return nil, fmt.Errorf("nurbs: %d knots but %d multiplicities", len(knots), len(multiplicities))
	}
	var kv KnotVector
	for i, k := range knots {
		for j := 0; j < multiplicities[i]; j++ {
			kv = append(kv, k)
		}
	}
	return kv, nil
}

// Domain returns the parametric range covered by the knot vector.
func (kv KnotVector) Domain() (min, max float64) {
	return kv[0], kv[len(kv)-1]
}

// Span returns the knot span index containing u for the given degree.
func (kv KnotVector) Span(degree int, u float64) int {
	n := len(kv) - degree - 2
	if u >= kv[n+1] {
		return n
	}
	if u < kv[degree] {
		return degree
	}
	low, high := degree, n+1
	mid := (low + high) / 2
	for u < kv[mid] || u >= kv[mid+1] {
		if u < kv[mid] {
			high = mid
		} else {
			low = mid
		}
		mid = (low + high) / 2
	}
	return mid
}

// basisFunctions returns the degree+1 non-vanishing basis function
// values at u within the given knot span.
func (kv KnotVector) basisFunctions(span int, u float64, degree int) []float64 {
	basis := make([]float64, degree+1)
	left := make([]float64, degree+1)
	right := make([]float64, degree+1)

	basis[0] = 1
	for j := 1; j <= degree; j++ {
		left[j] = u - kv[span+1-j]
		right[j] = kv[span+j] - u
		var saved float64
		for r := 0; r < j; r++ {
			temp := basis[r] / (right[r+1] + left[j-r])
			basis[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		basis[j] = saved
	}
	return basis
}

// derivBasisFunctions returns the non-vanishing basis functions and
// their derivatives up to order numDerivs. Row k holds the kth
// derivative; row 0 holds the basis values.
func (kv KnotVector) derivBasisFunctions(span int, u float64, degree, numDerivs int) [][]float64 {
	p := degree
	n := numDerivs

	ndu := zeros2d(p+1, p+1)
	left := make([]float64, p+1)
	right := make([]float64, p+1)

	ndu[0][0] = 1
	for j := 1; j <= p; j++ {
		left[j] = u - kv[span+1-j]
		right[j] = kv[span+j] - u
		var saved float64
		for r := 0; r < j; r++ {
			ndu[j][r] = right[r+1] + left[j-r]
			temp := ndu[r][j-1] / ndu[j][r]
			ndu[r][j] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		ndu[j][j] = saved
	}

	ders := zeros2d(n+1, p+1)
	for j := 0; j <= p; j++ {
		ders[0][j] = ndu[j][p]
	}

	a := zeros2d(2, p+1)
	var j1, j2 int
	for r := 0; r <= p; r++ {
		s1, s2 := 0, 1
		a[0][0] = 1
		for k := 1; k <= n; k++ {
			var d float64
			rk := r - k
			pk := p - k
			if r >= k {
				a[s2][0] = a[s1][0] / ndu[pk+1][rk]
				d = a[s2][0] * ndu[rk][pk]
			}
			if rk >= -1 {
				j1 = 1
			} else {
				j1 = -rk
			}
			if r-1 <= pk {
				j2 = k - 1
			} else {
				j2 = p - r
			}
			for j := j1; j <= j2; j++ {
				a[s2][j] = (a[s1][j] - a[s1][j-1]) / ndu[pk+1][rk+j]
				d += a[s2][j] * ndu[rk+j][pk]
			}
			if r <= pk {
				a[s2][k] = -a[s1][k-1] / ndu[pk+1][r]
				d += a[s2][k] * ndu[r][pk]
			}
			ders[k][r] = d
			s1, s2 = s2, s1
		}
	}

	acc := p
	for k := 1; k <= n; k++ {
		for j := 0; j <= p; j++ {
			ders[k][j] *= float64(acc)
		}
		acc *= p - k
	}
	return ders
}

func zeros2d(n, m int) [][]float64 {
	result := make([][]float64, n)
	for i := range result {
		result[i] = make([]float64, m)
	}
	return result
}
