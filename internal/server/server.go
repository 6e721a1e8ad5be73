// Package server exposes the inference engine over HTTP and websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"loan-scorer/internal/features"
	"loan-scorer/internal/loan"
	"loan-scorer/internal/metrics"
	"loan-scorer/internal/ml"
)

// maxBodyBytes bounds a single scoring request or websocket message.
const maxBodyBytes = 64 << 10

// kindBadRequest labels bodies that could not be decoded into a field map.
const kindBadRequest = "bad_request"

// Scorer is the engine surface the server needs.
type Scorer interface {
	Predict(ctx context.Context, app loan.Application) (loan.Decision, error)
	Artifacts() *ml.Artifacts
}

// Metrics is the serving metrics surface. It may be nil.
type Metrics interface {
	HTTPRequestsInc(route string, code int)
	PanicsTotal() metrics.MetricsCounter
	WSSessions() metrics.MetricsGauge
}

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Gatherer backs /metrics; the default registry when nil.
	Gatherer prometheus.Gatherer
}

// Server serves scoring requests.
type Server struct {
	scorer  Scorer
	metrics Metrics
	gather  prometheus.Gatherer
	server  *http.Server
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// New creates a server for scorer. m may be nil.
func New(cfg Config, scorer Scorer, m Metrics) *Server {
	s := &Server{
		scorer:  scorer,
		metrics: m,
		gather:  cfg.Gatherer,
	}
	if s.gather == nil {
		s.gather = prometheus.DefaultGatherer
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with request id, recovery and request
// counting middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))

	var h http.Handler = mux
	h = s.recoverMiddleware(h)
	h = s.requestMiddleware(h)
	return h
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting loan scoring server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, kindBadRequest, errors.New("method not allowed"))
		return
	}

	app, err := decodeApplication(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, kindBadRequest, err)
		return
	}

	d, err := s.scorer.Predict(r.Context(), app)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("kind", ml.Kind(err)).Msg("prediction failed")
		writeError(w, r, StatusFor(err), ml.Kind(err), err)
		return
	}

	resp := d.Response()
	zerolog.Ctx(r.Context()).Info().
		Str("status", resp.Status).
		Float64("score", resp.Score).
		Float64("dti", resp.DTI).
		Msg("application scored")

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	a := s.scorer.Artifacts()
	health := map[string]interface{}{
		"status":     "ok",
		"features":   len(a.FeatureOrder),
		"classifier": a.Metadata.ClassifierKind,
		"trained_at": a.Metadata.TrainedAt,
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	a := s.scorer.Artifacts()

	var classes []string
	if a.TargetEncoder != nil {
		classes = a.TargetEncoder.Classes()
	}

	info := map[string]interface{}{
		"trained_at":         a.Metadata.TrainedAt,
		"training_rows":      a.Metadata.TrainingRows,
		"dropped_rows":       a.Metadata.DroppedRows,
		"training_accuracy":  a.Metadata.TrainingAccuracy,
		"classifier":         a.Metadata.ClassifierKind,
		"feature_order":      a.FeatureOrder,
		"encoded_columns":    a.Encoders.Columns(),
		"fallback_code":      a.Encoders.Fallback(),
		"target_classes":     classes,
		"transformer_state":  a.State,
		"feature_importance": ml.FeatureImportance(a),
		"serving_defaults":   features.ServingDefaults(),
	}
	writeJSON(w, http.StatusOK, info)
}

// StatusFor maps an engine failure to an HTTP status code.
func StatusFor(err error) int {
	switch ml.Kind(err) {
	case ml.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case ml.KindClassifier:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeApplication reads a JSON object or a form submission into a field map.
func decodeApplication(w http.ResponseWriter, r *http.Request) (loan.Application, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		return parseFields(data)
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}
	app := make(loan.Application, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			app[k] = v[0]
		}
	}
	return app, nil
}

// parseFields decodes a JSON object of field values. Numbers and booleans are
// kept as their literal text and null counts as a blank value.
func parseFields(data []byte) (loan.Application, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if raw == nil {
		return nil, errors.New("request body must be a JSON object")
	}

	app := make(loan.Application, len(raw))
	for k, v := range raw {
		var value interface{}
		if err := json.Unmarshal(v, &value); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		switch t := value.(type) {
		case nil:
			app[k] = ""
		case string:
			app[k] = t
		case float64:
			app[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			app[k] = strconv.FormatBool(t)
		default:
			return nil, fmt.Errorf("field %q must be a scalar", k)
		}
	}
	return app, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind string, err error) {
	writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Kind:      kind,
		RequestID: RequestID(r.Context()),
	})
}
