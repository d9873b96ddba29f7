package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgwallah/pgwallah-backend/api/controllers"
	"github.com/pgwallah/pgwallah-backend/internal/intents"
	"github.com/pgwallah/pgwallah-backend/internal/reconciliation"
	"github.com/pgwallah/pgwallah-backend/internal/webhooks"
	"github.com/pgwallah/pgwallah-backend/pkg/config"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	switch v := value.(type) {
	case string:
		m.values[key] = v
	case []byte:
		m.values[key] = string(v)
	}
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

type stubWebhooks struct {
	gateway string
}

func (s *stubWebhooks) Handle(_ context.Context, delivery webhooks.Delivery) (reconciliation.Outcome, error) {
	s.gateway = delivery.Gateway
	return reconciliation.OutcomeApplied, nil
}

type stubIntents struct {
	creates int
}

func (s *stubIntents) Create(_ context.Context, input intents.CreateInput) (*models.PaymentIntent, error) {
	s.creates++
	return &models.PaymentIntent{
		ID:       uuid.New(),
		TenantID: input.TenantID,
		Amount:   input.Amount,
		Currency: "INR",
		Purpose:  input.Purpose,
		Gateway:  enums.GatewayRazorpay,
		Status:   enums.IntentStatusPending,
	}, nil
}

func (s *stubIntents) OpenOrder(context.Context, uuid.UUID) (*models.PaymentIntent, error) {
	return nil, nil
}

func (s *stubIntents) Get(context.Context, uuid.UUID) (*intents.Details, error) {
	return nil, nil
}

func newTestRouter(deps Dependencies) http.Handler {
	deps.Config = &config.Config{App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}}}
	deps.Logger = logger.New(logger.Options{ServiceName: "router-test", Output: &bytes.Buffer{}})
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.NewRegistry()
	}
	return NewRouter(deps)
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(Dependencies{
		Readiness: []controllers.ReadinessCheck{{Name: "db", Pinger: stubPinger{}}},
	})

	resp := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pgwallah_router_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := newTestRouter(Dependencies{Gatherer: reg})
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "pgwallah_router_test_total 1")
}

func TestWebhookRouteSkipsIdempotencyKey(t *testing.T) {
	hooks := &stubWebhooks{}
	router := newTestRouter(Dependencies{
		Webhooks:    hooks,
		Idempotency: &memoryStore{values: map[string]string{}},
	})

	resp := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "square", hooks.gateway)
}

func TestCreateIntentRequiresIdempotencyKey(t *testing.T) {
	svc := &stubIntents{}
	router := newTestRouter(Dependencies{
		Intents:     svc,
		Idempotency: &memoryStore{values: map[string]string{}},
	})

	body := `{"tenant_id":"` + uuid.NewString() + `","amount":"500","purpose":"rent"}`
	resp := serve(router, httptest.NewRequest(http.MethodPost, "/api/v1/intents", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, svc.creates)
}

func TestCreateIntentReplaysByIdempotencyKey(t *testing.T) {
	svc := &stubIntents{}
	router := newTestRouter(Dependencies{
		Intents:     svc,
		Idempotency: &memoryStore{values: map[string]string{}},
	})

	body := `{"tenant_id":"` + uuid.NewString() + `","amount":"500","purpose":"rent"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/intents", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "intent-1")
		resp := serve(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
	}
	assert.Equal(t, 1, svc.creates)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(Dependencies{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/verify", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := serve(router, req)

	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(Dependencies{})
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
