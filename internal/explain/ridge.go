package explain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ridgeFit solves weighted ridge regression with an unpenalized intercept by
// centring on weighted means and solving (XcᵀWXc + αI)β = XcᵀW·yc.
func ridgeFit(x *mat.Dense, y, w []float64, alpha float64) (coef []float64, intercept float64, err error) {
	n, p := x.Dims()
	if n != len(y) || n != len(w) {
		return nil, 0, fmt.Errorf("ridge: %d rows, %d targets, %d weights", n, len(y), len(w))
	}

	wsum := floats.Sum(w)
	if wsum <= 0 || math.IsNaN(wsum) {
		return nil, 0, fmt.Errorf("ridge: sample weights sum to %v", wsum)
	}

	xMean := make([]float64, p)
	for j := 0; j < p; j++ {
		xMean[j] = floats.Dot(mat.Col(nil, j, x), w) / wsum
	}
	yMean := floats.Dot(y, w) / wsum

	// rows scaled by sqrt(w) so that XwᵀXw = XcᵀWXc
	xw := mat.NewDense(n, p, nil)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			xw.Set(i, j, (x.At(i, j)-xMean[j])*sw)
		}
		yw.SetVec(i, (y[i]-yMean)*sw)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, xw.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(xw.T(), yw)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, 0, fmt.Errorf("ridge: system is not positive definite")
	}

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return nil, 0, fmt.Errorf("ridge: %w", err)
	}

	coef = make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
		if math.IsNaN(coef[j]) || math.IsInf(coef[j], 0) {
			return nil, 0, fmt.Errorf("ridge: non-finite coefficient")
		}
	}
	intercept = yMean - floats.Dot(xMean, coef)
	return coef, intercept, nil
}

// weightedR2 is the coefficient of determination of the fitted model. A
// constant target scores 1 when predicted exactly and 0 otherwise.
func weightedR2(x *mat.Dense, y, w, coef []float64, intercept float64) float64 {
	n, _ := x.Dims()
	yMean := floats.Dot(y, w) / floats.Sum(w)

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		pred := intercept + floats.Dot(mat.Row(nil, i, x), coef)
		ssRes += w[i] * (y[i] - pred) * (y[i] - pred)
		ssTot += w[i] * (y[i] - yMean) * (y[i] - yMean)
	}

	if ssTot == 0 {
		if ssRes < 1e-12 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// columns returns a copy of x restricted to the given columns.
func columns(x *mat.Dense, cols []int) *mat.Dense {
	n, _ := x.Dims()
	out := mat.NewDense(n, len(cols), nil)
	for k, j := range cols {
		out.SetCol(k, mat.Col(nil, j, x))
	}
	return out
}
