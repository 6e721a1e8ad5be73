package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"loan-scorer/internal/common"
)

const (
	kindLogistic = "logistic"

	gradientThreshold = 1e-6
)

// LogisticConfig controls training of the built-in model.
type LogisticConfig struct {
	// Iterations caps the optimizer's major iterations.
	Iterations int
	L2         float64
	Threshold  float64
}

// DefaultLogisticConfig returns the settings used when none are configured.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		Iterations: common.DefaultTrainIterations,
		L2:         common.DefaultTrainL2,
		Threshold:  common.DefaultDecisionThreshold,
	}
}

// LogisticModel is an L2 regularised logistic regression over standardised
// inputs. The mean log loss is minimised with L-BFGS, which is deterministic
// for a given training set. A fitted model is read-only and safe for
// concurrent use.
type LogisticModel struct {
	cfg     LogisticConfig
	weights []float64
	bias    float64
	mean    []float64
	scale   []float64
}

// NewLogisticModel returns an unfitted model.
func NewLogisticModel(cfg LogisticConfig) *LogisticModel {
	if cfg.Iterations <= 0 {
		cfg.Iterations = common.DefaultTrainIterations
	}
	if cfg.L2 < 0 {
		cfg.L2 = common.DefaultTrainL2
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = common.DefaultDecisionThreshold
	}
	return &LogisticModel{cfg: cfg}
}

// Fitted reports whether the model has weights.
func (m *LogisticModel) Fitted() bool { return len(m.weights) > 0 }

// Threshold returns the probability at or above which Predict returns 1.
func (m *LogisticModel) Threshold() float64 { return m.cfg.Threshold }

// Fit trains the model on X with labels y in {0,1}.
func (m *LogisticModel) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("no training samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("got %d samples and %d labels", len(X), len(y))
	}

	n := len(X[0])
	if n == 0 {
		return errors.New("no features")
	}
	for i, row := range X {
		if err := validateFeatures(row, n); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if y[i] != 0 && y[i] != 1 {
			return fmt.Errorf("sample %d: label %d is not binary", i, y[i])
		}
	}

	raw := mat.NewDense(len(X), n, nil)
	for i, row := range X {
		raw.SetRow(i, row)
	}
	mean, scale := standardisation(raw)

	Z := mat.NewDense(len(X), n, nil)
	for i, row := range X {
		Z.SetRow(i, standardise(row, mean, scale))
	}
	target := make([]float64, len(y))
	for i, v := range y {
		target[i] = float64(v)
	}

	loss := logLoss{z: Z, y: target, l2: m.cfg.L2}
	problem := optimize.Problem{Func: loss.value, Grad: loss.gradient}
	settings := &optimize.Settings{
		MajorIterations:   m.cfg.Iterations,
		GradientThreshold: gradientThreshold,
	}

	// weights followed by the bias
	result, err := optimize.Minimize(problem, make([]float64, n+1), settings, &optimize.LBFGS{})
	if err != nil {
		if result == nil || floats.HasNaN(result.X) {
			return fmt.Errorf("fit logistic model: %w", err)
		}
		log.Warn().Err(err).Str("status", result.Status.String()).Msg("optimizer stopped early, keeping best weights")
	}

	m.weights = append([]float64(nil), result.X[:n]...)
	m.bias = result.X[n]
	m.mean = mean
	m.scale = scale
	return nil
}

// PredictProba returns the probability of class 1.
func (m *LogisticModel) PredictProba(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !m.Fitted() {
		return 0, ErrNotFitted
	}
	if err := validateFeatures(x, len(m.weights)); err != nil {
		return 0, err
	}
	return sigmoid(floats.Dot(m.weights, standardise(x, m.mean, m.scale)) + m.bias), nil
}

// Predict returns 1 when the probability of class 1 reaches the threshold.
func (m *LogisticModel) Predict(ctx context.Context, x []float64) (int, error) {
	p, err := m.PredictProba(ctx, x)
	if err != nil {
		return 0, err
	}
	return m.label(p), nil
}

// Score implements Scorer.
func (m *LogisticModel) Score(ctx context.Context, x []float64) (int, float64, error) {
	p, err := m.PredictProba(ctx, x)
	if err != nil {
		return 0, 0, err
	}
	return m.label(p), p, nil
}

func (m *LogisticModel) label(p float64) int {
	if p >= m.cfg.Threshold {
		return 1
	}
	return 0
}

type logisticJSON struct {
	Kind      string    `json:"kind"`
	Threshold float64   `json:"threshold"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
}

func (m *LogisticModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(logisticJSON{
		Kind:      kindLogistic,
		Threshold: m.cfg.Threshold,
		Weights:   m.weights,
		Bias:      m.bias,
		Mean:      m.mean,
		Scale:     m.scale,
	})
}

func (m *LogisticModel) UnmarshalJSON(data []byte) error {
	var raw logisticJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind != kindLogistic {
		return fmt.Errorf("unexpected classifier kind %q", raw.Kind)
	}
	if len(raw.Mean) != len(raw.Weights) || len(raw.Scale) != len(raw.Weights) {
		return errors.New("logistic model dimensions do not match")
	}

	restored := NewLogisticModel(LogisticConfig{Threshold: raw.Threshold})
	restored.weights = raw.Weights
	restored.bias = raw.Bias
	restored.mean = raw.Mean
	restored.scale = raw.Scale
	*m = *restored
	return nil
}

// logLoss is the mean logistic loss plus an L2 penalty on the weights. The
// parameter vector holds the weights followed by the bias.
type logLoss struct {
	z  *mat.Dense
	y  []float64
	l2 float64
}

func (l logLoss) margins(params []float64) *mat.VecDense {
	n := len(params) - 1
	var out mat.VecDense
	out.MulVec(l.z, mat.NewVecDense(n, params[:n]))
	for i := range l.y {
		out.SetVec(i, out.AtVec(i)+params[n])
	}
	return &out
}

func (l logLoss) value(params []float64) float64 {
	w := params[:len(params)-1]
	margins := l.margins(params)

	var sum float64
	for i, t := range l.y {
		s := margins.AtVec(i)
		sum += softplus(s) - t*s
	}
	return sum/float64(len(l.y)) + 0.5*l.l2*floats.Dot(w, w)
}

func (l logLoss) gradient(grad, params []float64) {
	n := len(params) - 1
	margins := l.margins(params)

	residual := mat.NewVecDense(len(l.y), nil)
	var biasGrad float64
	for i, t := range l.y {
		d := sigmoid(margins.AtVec(i)) - t
		residual.SetVec(i, d)
		biasGrad += d
	}

	samples := float64(len(l.y))
	weightGrad := mat.NewVecDense(n, grad[:n])
	weightGrad.MulVec(l.z.T(), residual)
	floats.Scale(1/samples, grad[:n])
	floats.AddScaled(grad[:n], l.l2, params[:n])
	grad[n] = biasGrad / samples
}

// standardisation returns per-column population mean and standard deviation.
// Constant columns get a scale of 1.
func standardisation(X *mat.Dense) (mean, scale []float64) {
	rows, n := X.Dims()
	mean = make([]float64, n)
	scale = make([]float64, n)

	col := make([]float64, rows)
	for j := 0; j < n; j++ {
		mat.Col(col, j, X)
		mean[j], scale[j] = stat.PopMeanStdDev(col, nil)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

func standardise(x, mean, scale []float64) []float64 {
	z := make([]float64, len(x))
	copy(z, x)
	floats.Sub(z, mean)
	floats.Div(z, scale)
	return z
}

// softplus is log(1+e^s) without overflow.
func softplus(s float64) float64 {
	return math.Max(s, 0) + math.Log1p(math.Exp(-math.Abs(s)))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
