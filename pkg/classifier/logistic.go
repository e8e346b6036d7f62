// Package classifier fits the pairwise author classifier: an L2-regularised
// logistic regression over two authors' embeddings.
package classifier

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/xhad/twitoff/internal/models"
	"github.com/xhad/twitoff/pkg/metrics"
)

// Labels assigned to the two sides of a fit.
const (
	LabelA = 1
	LabelB = 0
)

type Config struct {
	C             float64 // inverse regularisation strength
	MaxIterations int
	Tolerance     float64 // gradient norm at which the solver stops
}

func DefaultConfig() Config {
	return Config{
		C:             1.0,
		MaxIterations: 100,
		Tolerance:     1e-4,
	}
}

// Builder fits a fresh classifier for every pair of embedding sets.
type Builder struct {
	config Config
}

func NewBuilder(config Config) *Builder {
	def := DefaultConfig()
	if config.C <= 0 {
		config.C = def.C
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = def.MaxIterations
	}
	if config.Tolerance <= 0 {
		config.Tolerance = def.Tolerance
	}
	return &Builder{config: config}
}

// LogisticRegression is a fitted linear model: Decision(x) = w·x + b.
type LogisticRegression struct {
	weights []float64
	bias    float64
}

// Fit stacks a then b into one training matrix, labels rows of a with LabelA
// and rows of b with LabelB, and minimises the regularised log-loss.
// No rows are held out.
func (bld *Builder) Fit(a, b [][]float32) (*LogisticRegression, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, fmt.Errorf("fit with %d and %d rows: %w", len(a), len(b), models.ErrSingleClass)
	}
	dim := len(a[0])
	if dim == 0 {
		return nil, fmt.Errorf("zero-length embedding: %w", models.ErrDimensionMismatch)
	}

	start := time.Now()
	n := len(a) + len(b)
	data := make([]float64, 0, n*dim)
	signs := make([]float64, 0, n)
	for i, row := range append(append(make([][]float32, 0, n), a...), b...) {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has %d values, expected %d: %w", i, len(row), dim, models.ErrDimensionMismatch)
		}
		for _, v := range row {
			data = append(data, float64(v))
		}
		if i < len(a) {
			signs = append(signs, 1)
		} else {
			signs = append(signs, -1)
		}
	}

	obj := &objective{
		x:     mat.NewDense(n, dim, data),
		signs: signs,
		c:     bld.config.C,
		dim:   dim,
		z:     mat.NewVecDense(n, nil),
		r:     mat.NewVecDense(n, nil),
	}

	settings := &optimize.Settings{
		GradientThreshold: bld.config.Tolerance,
		MajorIterations:   bld.config.MaxIterations,
	}
	result, err := optimize.Minimize(optimize.Problem{Func: obj.loss, Grad: obj.grad}, make([]float64, dim+1), settings, &optimize.LBFGS{})
	if result == nil || len(result.X) != dim+1 {
		return nil, fmt.Errorf("logistic regression did not converge: %w", err)
	}
	if err != nil && !usable(result) {
		return nil, fmt.Errorf("logistic regression did not converge: %w", err)
	}

	metrics.FitDuration.Observe(time.Since(start).Seconds())
	metrics.TrainingRows.Observe(float64(n))

	weights := make([]float64, dim)
	copy(weights, result.X[:dim])
	return &LogisticRegression{weights: weights, bias: result.X[dim]}, nil
}

// usable reports whether a solver result that ended with an error (typically a
// line search unable to improve on an already flat point) still holds finite parameters.
func usable(result *optimize.Result) bool {
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return false
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Dimension is the input dimension the model was fitted on.
func (m *LogisticRegression) Dimension() int { return len(m.weights) }

func (m *LogisticRegression) Weights() []float64 {
	w := make([]float64, len(m.weights))
	copy(w, m.weights)
	return w
}

func (m *LogisticRegression) Bias() float64 { return m.bias }

// Decision returns w·x + b.
func (m *LogisticRegression) Decision(x []float32) (float64, error) {
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("query has %d values, model expects %d: %w", len(x), len(m.weights), models.ErrDimensionMismatch)
	}
	xs := make([]float64, len(x))
	for i, v := range x {
		xs[i] = float64(v)
	}
	return floats.Dot(m.weights, xs) + m.bias, nil
}

// Probability returns the modelled probability of LabelA.
func (m *LogisticRegression) Probability(x []float32) (float64, error) {
	d, err := m.Decision(x)
	if err != nil {
		return 0, err
	}
	return sigmoid(d), nil
}

// Predict returns LabelA iff the decision value is strictly positive.
// A decision of exactly zero resolves to LabelB.
func (m *LogisticRegression) Predict(x []float32) (int, error) {
	d, err := m.Decision(x)
	if err != nil {
		return 0, err
	}
	if d > 0 {
		return LabelA, nil
	}
	return LabelB, nil
}

// objective is ½‖w‖² + C·Σ log(1 + exp(−sᵢ(w·xᵢ + b))), with sᵢ = ±1 and
// an unpenalised bias. Parameters are laid out as [w..., b].
type objective struct {
	x     *mat.Dense
	signs []float64
	c     float64
	dim   int

	z, r *mat.VecDense // scratch
}

func (o *objective) margins(theta []float64) {
	o.z.MulVec(o.x, mat.NewVecDense(o.dim, theta[:o.dim]))
	for i, s := range o.signs {
		o.z.SetVec(i, s*(o.z.AtVec(i)+theta[o.dim]))
	}
}

func (o *objective) loss(theta []float64) float64 {
	o.margins(theta)
	sum := 0.0
	for i := range o.signs {
		sum += logOnePlusExp(-o.z.AtVec(i))
	}
	w := theta[:o.dim]
	return 0.5*floats.Dot(w, w) + o.c*sum
}

func (o *objective) grad(grad, theta []float64) {
	o.margins(theta)
	bias := 0.0
	for i, s := range o.signs {
		// d/dm log(1+exp(-m)) = -σ(-m)
		v := -s * sigmoid(-o.z.AtVec(i)) * o.c
		o.r.SetVec(i, v)
		bias += v
	}
	gw := mat.NewVecDense(o.dim, grad[:o.dim])
	gw.MulVec(o.x.T(), o.r)
	floats.Add(grad[:o.dim], theta[:o.dim])
	grad[o.dim] = bias
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// logOnePlusExp computes log(1+exp(v)) without overflow.
func logOnePlusExp(v float64) float64 {
	if v > 0 {
		return v + math.Log1p(math.Exp(-v))
	}
	return math.Log1p(math.Exp(v))
}
