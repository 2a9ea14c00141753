package apigateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/contracts"
	"speech-assessment-platform/backend/internal/exercisemanagement"
)

func init() { gin.SetMode(gin.TestMode) }

type nopPublisher struct{}

func (nopPublisher) PublishTask(ctx context.Context, t contracts.AudioTask) error { return nil }

func TestStatusRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "speechai_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	r := SetupStatusRouter(reg, nil, zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "speechai_test_total 1") {
		t.Fatalf("metrics: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
}

func TestHealthzReportsFailure(t *testing.T) {
	r := SetupStatusRouter(prometheus.NewRegistry(), func(context.Context) error { return errors.New("broker connection closed") }, zap.NewNop())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "broker connection closed") {
		t.Fatalf("healthz: %d %s", w.Code, w.Body.String())
	}
}

func TestExerciseRouterRequiresKey(t *testing.T) {
	svc := exercisemanagement.NewExerciseService(nopPublisher{}, nil, zap.NewNop())
	r := SetupExerciseRouter(exercisemanagement.NewHandlers(svc, 0), "k", prometheus.NewRegistry(), nil, zap.NewNop())
	body := `{"userId":"u","audioUrl":"a.wav","referenceText":"привіт"}`

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exercise/start", strings.NewReader(body)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("without key: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/exercise/start", strings.NewReader(body))
	req.Header.Set("X-API-Key", "k")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("with key: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz should not need a key: %d", w.Code)
	}
}
