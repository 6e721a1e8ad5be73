package ml

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// RemoteClassifier scores vectors with a model served over HTTP. It is used
// when the classifier was trained outside this module.
type RemoteClassifier struct {
	url     string
	rest    *resty.Client
	metrics MetricsInterface
}

type remoteRequest struct {
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Prediction    int       `json:"prediction"`
	Error         string    `json:"error,omitempty"`
}

// NewRemoteClassifier returns a client for the model served at baseURL.
func NewRemoteClassifier(baseURL string, timeout time.Duration, metrics MetricsInterface) *RemoteClassifier {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")

	return &RemoteClassifier{
		url:     strings.TrimRight(baseURL, "/"),
		rest:    r,
		metrics: metrics,
	}
}

// Predict returns the remote model's label.
func (c *RemoteClassifier) Predict(ctx context.Context, x []float64) (int, error) {
	label, _, err := c.Score(ctx, x)
	return label, err
}

// PredictProba returns the remote model's probability of class 1.
func (c *RemoteClassifier) PredictProba(ctx context.Context, x []float64) (float64, error) {
	_, p, err := c.Score(ctx, x)
	return p, err
}

// Score performs a single remote prediction.
func (c *RemoteClassifier) Score(ctx context.Context, x []float64) (int, float64, error) {
	if err := validateFeatures(x, 0); err != nil {
		return 0, 0, err
	}

	var out remoteResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(remoteRequest{Features: x}).
		SetResult(&out).
		Post(c.url + "/predict")
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			if c.metrics != nil {
				c.metrics.MLTimeoutsInc()
			}
			return 0, 0, fmt.Errorf("remote prediction timeout: %w", err)
		}
		return 0, 0, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != 200 {
		return 0, 0, fmt.Errorf("remote model error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return 0, 0, fmt.Errorf("remote model error: %s", out.Error)
	}

	if len(out.Probabilities) != 2 {
		log.Error().
			Int("prob_count", len(out.Probabilities)).
			Interface("probabilities", out.Probabilities).
			Msg("Invalid prediction response - expected 2 probabilities")
		return 0, 0, fmt.Errorf("expected 2 probabilities, got %d", len(out.Probabilities))
	}
	for i, p := range out.Probabilities {
		if !validProbability(p) {
			return 0, 0, fmt.Errorf("invalid probability %d: %f", i, p)
		}
	}
	if out.Prediction != 0 && out.Prediction != 1 {
		return 0, 0, fmt.Errorf("invalid prediction %d", out.Prediction)
	}

	log.Debug().
		Int("prediction", out.Prediction).
		Floats64("probabilities", out.Probabilities).
		Msg("Remote prediction successful")

	return out.Prediction, out.Probabilities[1], nil
}
