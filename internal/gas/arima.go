package gas

import (
	"fmt"
	"math"

	"github.com/chainops/launchgate/internal/domain"
)

// arModel is a fitted AR(p) model over a d-times differenced series:
// z_t = c + phi_1 z_{t-1} + ... + phi_p z_{t-p} + e_t. Fitting is ordinary
// least squares solved by Gaussian elimination with partial pivoting; there
// is no randomness anywhere, so identical inputs reproduce identical fits.
type arModel struct {
	order     domain.ModelOrder
	intercept float64
	phi       []float64
	sigma2    float64
	logLik    float64
	aic       float64
	bic       float64
	// tail holds the last p differenced values and lastLevels the last d
	// original levels, both needed to extend the series forward.
	tail       []float64
	lastLevels []float64
}

// difference applies d rounds of first differencing and returns the
// differenced series plus the dropped leading levels needed to integrate
// forecasts back.
func difference(y []float64, d int) (z []float64, lastLevels []float64) {
	z = append([]float64(nil), y...)
	for round := 0; round < d; round++ {
		lastLevels = append(lastLevels, z[len(z)-1])
		next := make([]float64, len(z)-1)
		for i := 1; i < len(z); i++ {
			next[i-1] = z[i] - z[i-1]
		}
		z = next
	}
	return z, lastLevels
}

// solveNormal solves A x = b by Gaussian elimination with partial pivoting.
// A near-zero pivot marks a collinear column (a constant series makes every
// lag column collinear with the intercept); the corresponding coefficient is
// pinned to zero instead of failing the fit.
func solveNormal(a [][]float64, b []float64) []float64 {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(append([]float64(nil), a[i]...), b[i])
	}

	scale := 1.0
	for i := range a {
		for j := range a[i] {
			if abs := math.Abs(a[i][j]); abs > scale {
				scale = abs
			}
		}
	}
	pivotEps := 1e-12 * scale
	pivotRow := make([]int, n)
	for i := range pivotRow {
		pivotRow[i] = -1
	}
	usedRows := make([]bool, n)

	for col := 0; col < n; col++ {
		best, bestAbs := -1, pivotEps
		for row := 0; row < n; row++ {
			if usedRows[row] {
				continue
			}
			if abs := math.Abs(m[row][col]); abs > bestAbs {
				best, bestAbs = row, abs
			}
		}
		if best < 0 {
			continue // collinear column, coefficient stays zero
		}
		usedRows[best] = true
		pivotRow[col] = best
		for row := 0; row < n; row++ {
			if row == best || math.Abs(m[row][col]) == 0 {
				continue
			}
			f := m[row][col] / m[best][col]
			for k := col; k <= n; k++ {
				m[row][k] -= f * m[best][k]
			}
		}
	}

	x := make([]float64, n)
	for col := 0; col < n; col++ {
		if r := pivotRow[col]; r >= 0 {
			x[col] = m[r][n] / m[r][col]
		}
	}
	return x
}

// fitAR fits AR(p) on the d-differenced series by OLS and scores it with
// Gaussian log-likelihood, AIC and BIC.
func fitAR(y []float64, order domain.ModelOrder) (*arModel, error) {
	z, lastLevels := difference(y, order.D)
	p := order.P
	rows := len(z) - p
	if rows < p+2 {
		return nil, &domain.ModelFitError{
			Order:  order,
			Reason: fmt.Sprintf("only %d usable rows after differencing", rows),
		}
	}

	// Normal equations for the design [1, z_{t-1}, ..., z_{t-p}].
	dim := p + 1
	a := make([][]float64, dim)
	for i := range a {
		a[i] = make([]float64, dim)
	}
	bvec := make([]float64, dim)
	regressor := func(t, j int) float64 {
		if j == 0 {
			return 1
		}
		return z[t-j]
	}
	for t := p; t < len(z); t++ {
		for i := 0; i < dim; i++ {
			ri := regressor(t, i)
			bvec[i] += ri * z[t]
			for j := 0; j < dim; j++ {
				a[i][j] += ri * regressor(t, j)
			}
		}
	}

	coef := solveNormal(a, bvec)
	for _, c := range coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, &domain.ModelFitError{Order: order, Reason: "non-finite coefficients"}
		}
	}

	sse := 0.0
	for t := p; t < len(z); t++ {
		pred := coef[0]
		for j := 1; j <= p; j++ {
			pred += coef[j] * z[t-j]
		}
		r := z[t] - pred
		sse += r * r
	}
	n := float64(rows)
	sigma2 := sse / n
	if sigma2 < 1e-12 {
		sigma2 = 1e-12
	}
	logLik := -n / 2 * (math.Log(2*math.Pi*sigma2) + 1)
	k := float64(p + 2) // intercept, AR coefficients, residual variance
	aic := 2*k - 2*logLik
	bic := k*math.Log(n) - 2*logLik
	if math.IsNaN(aic) || math.IsInf(aic, 0) {
		return nil, &domain.ModelFitError{Order: order, Reason: "non-finite information criteria"}
	}

	tail := append([]float64(nil), z[len(z)-p:]...)
	return &arModel{
		order:      order,
		intercept:  coef[0],
		phi:        coef[1:],
		sigma2:     sigma2,
		logLik:     logLik,
		aic:        aic,
		bic:        bic,
		tail:       tail,
		lastLevels: lastLevels,
	}, nil
}

// forecast extends the model h steps and integrates back to price levels.
// The confidence band widens with the square root of the step, scaled by the
// residual standard deviation.
func (m *arModel) forecast(h int) (pred, lower, upper []float64) {
	z := append([]float64(nil), m.tail...)
	diffs := make([]float64, h)
	for step := 0; step < h; step++ {
		v := m.intercept
		for j, phi := range m.phi {
			v += phi * z[len(z)-1-j]
		}
		diffs[step] = v
		z = append(z, v)
	}

	// Integrate d times using the retained levels.
	levels := diffs
	for round := len(m.lastLevels) - 1; round >= 0; round-- {
		base := m.lastLevels[round]
		integrated := make([]float64, h)
		acc := base
		for i, dv := range levels {
			acc += dv
			integrated[i] = acc
		}
		levels = integrated
	}

	sd := math.Sqrt(m.sigma2)
	pred = make([]float64, h)
	lower = make([]float64, h)
	upper = make([]float64, h)
	for i := 0; i < h; i++ {
		se := sd * math.Sqrt(float64(i+1))
		pred[i] = levels[i]
		lower[i] = levels[i] - 1.96*se
		upper[i] = levels[i] + 1.96*se
	}
	return pred, lower, upper
}

// selectOrder runs the deterministic fixed-grid AIC minimization:
// p in {1,2,3} x d in {0,1}, q fixed to 0. Ties keep the earlier candidate,
// so the smaller d and then the smaller p wins. Candidates that fail to fit
// are skipped; if every candidate fails the last fit error is returned.
func selectOrder(y []float64) (*arModel, error) {
	var best *arModel
	var lastErr error
	for _, d := range []int{0, 1} {
		for _, p := range []int{1, 2, 3} {
			m, err := fitAR(y, domain.ModelOrder{P: p, D: d})
			if err != nil {
				lastErr = err
				continue
			}
			if best == nil || m.aic < best.aic-1e-9 {
				best = m
			}
		}
	}
	if best == nil {
		if lastErr == nil {
			lastErr = &domain.ModelFitError{Reason: "no candidate order could be fitted"}
		}
		return nil, lastErr
	}
	return best, nil
}
