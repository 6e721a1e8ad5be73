package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-scorer/internal/advisor"
	"loan-scorer/internal/dataset"
	"loan-scorer/internal/loan"
	"loan-scorer/internal/metrics"
	"loan-scorer/internal/ml"
)

const trainingCSV = `Loan_ID,Gender,Married,Dependents,Education,Self_Employed,ApplicantIncome,CoapplicantIncome,LoanAmount,Loan_Amount_Term,Credit_History,Property_Area,Loan_Status
LP001,Male,Yes,0,Graduate,No,5849,0,,360,1,Urban,Y
LP002,Male,Yes,1,Graduate,No,4583,1508,128,360,1,Rural,N
LP003,Male,Yes,0,Graduate,Yes,3000,0,66,360,1,Urban,Y
LP004,Male,Yes,0,Not Graduate,No,2583,2358,120,360,1,Urban,Y
LP005,Female,No,0,Graduate,No,3510,0,76,360,0,Urban,N
LP006,Male,Yes,2,Graduate,No,4006,1526,168,360,1,Semiurban,Y
`

func trainedArtifacts(t *testing.T) *ml.Artifacts {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(trainingCSV), ',')
	require.NoError(t, err)
	a, _, err := ml.Train(ds, ml.TrainOptions{Logistic: ml.DefaultLogisticConfig()})
	require.NoError(t, err)
	return a
}

// newEngine returns an engine over freshly trained artifacts that scores
// with a fixed classifier.
func newEngine(t *testing.T, label int, proba float64) *ml.Engine {
	t.Helper()
	a := trainedArtifacts(t)
	a.Classifier = &ml.MockClassifier{Label: label, Proba: proba}
	engine, err := ml.NewEngine(a, nil)
	require.NoError(t, err)
	return engine
}

func newMetrics() (*metrics.Metrics, *metrics.MetricsWrapper, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	return m, metrics.NewWrapper(m), registry
}

// fakeScorer fails or panics on demand.
type fakeScorer struct {
	artifacts *ml.Artifacts
	err       error
	panicWith interface{}
}

func (f *fakeScorer) Predict(context.Context, loan.Application) (loan.Decision, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return loan.Decision{}, f.err
	}
	return loan.Decision{Label: loan.Approved, Confidence: 90}, nil
}

func (f *fakeScorer) Artifacts() *ml.Artifacts { return f.artifacts }

func approvedApplication() map[string]interface{} {
	return map[string]interface{}{
		"Gender":            "Male",
		"Married":           "Yes",
		"Dependents":        "0",
		"Education":         "Graduate",
		"Self_Employed":     "No",
		"ApplicantIncome":   5000,
		"CoapplicantIncome": 0,
		"LoanAmount":        "100",
		"Loan_Amount_Term":  "360",
		"Credit_History":    1,
		"Property_Area":     "Urban",
	}
}

func postJSON(t *testing.T, h http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPredict_JSON(t *testing.T) {
	srv := New(Config{}, newEngine(t, 1, 0.8), nil)

	rec := postJSON(t, srv.Handler(), approvedApplication())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var resp loan.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, loan.Response{Status: "APPROVED", Score: 80, Advice: advisor.ApprovedAdvice, DTI: 5.6}, resp)
}

func TestPredict_Form(t *testing.T) {
	srv := New(Config{}, newEngine(t, 0, 0.3), nil)

	form := url.Values{}
	for k, v := range approvedApplication() {
		form.Set(k, fmt.Sprint(v))
	}
	form.Set("Credit_History", "0")

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loan.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DECLINED", resp.Status)
	assert.Equal(t, 70.0, resp.Score)
	assert.Equal(t, advisor.CreditHistoryAdvice, resp.Advice)
}

func TestPredict_SchemaMismatch(t *testing.T) {
	srv := New(Config{}, newEngine(t, 1, 0.8), nil)

	app := approvedApplication()
	delete(app, "Dependents")

	rec := postJSON(t, srv.Handler(), app)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, ml.KindSchemaMismatch, body.Kind)
	assert.Contains(t, body.Error, "Dependents")
}

func TestPredict_InvalidInput(t *testing.T) {
	srv := New(Config{}, newEngine(t, 1, 0.8), nil)

	app := approvedApplication()
	app["Loan_Amount_Term"] = "0"

	rec := postJSON(t, srv.Handler(), app)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ml.KindInvalidInput, decodeError(t, rec).Kind)
}

func TestPredict_ErrorMapping(t *testing.T) {
	a := trainedArtifacts(t)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"schema mismatch", fmt.Errorf("%w: feature missing", ml.ErrSchemaMismatch), http.StatusInternalServerError, ml.KindSchemaMismatch},
		{"invalid input", fmt.Errorf("%w: zero term", ml.ErrInvalidInput), http.StatusUnprocessableEntity, ml.KindInvalidInput},
		{"classifier", fmt.Errorf("%w: upstream down", ml.ErrClassifier), http.StatusBadGateway, ml.KindClassifier},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, ml.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(Config{}, &fakeScorer{artifacts: a, err: tt.err}, nil)

			rec := postJSON(t, srv.Handler(), approvedApplication())
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus, StatusFor(tt.err))

			body := decodeError(t, rec)
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

func TestPredict_BadRequests(t *testing.T) {
	srv := New(Config{}, newEngine(t, 1, 0.8), nil)
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, kindBadRequest, decodeError(t, rec).Kind)

	rec = postJSON(t, h, map[string]interface{}{"Gender": []string{"Male"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestPredict_RecoversFromPanic(t *testing.T) {
	m, wrapper, _ := newMetrics()
	srv := New(Config{}, &fakeScorer{artifacts: trainedArtifacts(t), panicWith: "nil map"}, wrapper)

	rec := postJSON(t, srv.Handler(), approvedApplication())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, ml.KindInternal, body.Kind)
	assert.Contains(t, body.Error, "nil map")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Panics))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/predict", "500")))
}

func TestRequestID(t *testing.T) {
	srv := New(Config{}, &fakeScorer{artifacts: trainedArtifacts(t), err: ml.ErrClassifier}, nil)

	data, err := json.Marshal(approvedApplication())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", decodeError(t, rec).RequestID)

	first := postJSON(t, srv.Handler(), approvedApplication())
	second := postJSON(t, srv.Handler(), approvedApplication())
	assert.NotEqual(t, first.Header().Get(RequestIDHeader), second.Header().Get(RequestIDHeader))
}

func TestHealthAndModelInfo(t *testing.T) {
	engine := newEngine(t, 1, 0.8)
	srv := New(Config{}, engine, nil)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(len(engine.Artifacts().FeatureOrder)), health["features"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/model/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info struct {
		FeatureOrder    []string          `json:"feature_order"`
		EncodedColumns  []string          `json:"encoded_columns"`
		TargetClasses   []string          `json:"target_classes"`
		FallbackCode    int               `json:"fallback_code"`
		ServingDefaults map[string]string `json:"serving_defaults"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, engine.Artifacts().FeatureOrder, info.FeatureOrder)
	assert.Contains(t, info.EncodedColumns, "Property_Area")
	assert.Equal(t, []string{"N", "Y"}, info.TargetClasses)
	assert.Equal(t, 0, info.FallbackCode)
	assert.Equal(t, map[string]string{
		"Education":     "Graduate",
		"Property_Area": "Semiurban",
		"Self_Employed": "No",
	}, info.ServingDefaults)
}

func TestMetricsEndpoint(t *testing.T) {
	_, wrapper, registry := newMetrics()
	srv := New(Config{Gatherer: registry}, newEngine(t, 1, 0.8), wrapper)
	h := srv.Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `loan_http_requests_total{code="200",route="/health"} 1`)
	assert.Contains(t, string(body), `loan_http_requests_total{code="404",route="other"} 1`)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebsocket_Scoring(t *testing.T) {
	m, wrapper, _ := newMetrics()
	srv := New(Config{}, newEngine(t, 1, 0.8), wrapper)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(approvedApplication()))
	var resp loan.Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, loan.Response{Status: "APPROVED", Score: 80, Advice: advisor.ApprovedAdvice, DTI: 5.6}, resp)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSSessions))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var bad ErrorResponse
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, kindBadRequest, bad.Kind)

	app := approvedApplication()
	delete(app, "Dependents")
	require.NoError(t, conn.WriteJSON(app))
	var mismatch ErrorResponse
	require.NoError(t, conn.ReadJSON(&mismatch))
	assert.Equal(t, ml.KindSchemaMismatch, mismatch.Kind)
	assert.NotEmpty(t, mismatch.RequestID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.WSSessions) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWebsocket_PanicKeepsSessionOpen(t *testing.T) {
	m, wrapper, _ := newMetrics()
	srv := New(Config{}, &fakeScorer{artifacts: trainedArtifacts(t), panicWith: "boom"}, wrapper)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(approvedApplication()))
		var reply ErrorResponse
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, ml.KindInternal, reply.Kind)
		assert.Contains(t, reply.Error, "boom")
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Panics))
}
