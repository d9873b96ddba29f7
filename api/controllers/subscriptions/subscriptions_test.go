package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgwallah/pgwallah-backend/internal/subscriptions"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
	"github.com/pgwallah/pgwallah-backend/pkg/logger"
)

type fakeService struct {
	created    subscriptions.CreateInput
	atCycleEnd bool
	sub        *models.Subscription
	charges    []models.SubscriptionCharge
	list       []models.Subscription
	err        error
}

func (f *fakeService) Create(_ context.Context, input subscriptions.CreateInput) (*models.Subscription, error) {
	f.created = input
	return f.sub, f.err
}

func (f *fakeService) Cancel(_ context.Context, _ uuid.UUID, atCycleEnd bool) (*models.Subscription, error) {
	f.atCycleEnd = atCycleEnd
	return f.sub, f.err
}

func (f *fakeService) Get(context.Context, uuid.UUID) (*subscriptions.Details, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &subscriptions.Details{Subscription: f.sub, Charges: f.charges}, nil
}

func (f *fakeService) ListByTenant(context.Context, uuid.UUID) ([]models.Subscription, error) {
	return f.list, f.err
}

func newRouter(svc subscriptions.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "subscriptions-test", Output: &bytes.Buffer{}})
	router := chi.NewRouter()
	router.Post("/subscriptions", Create(svc, logg))
	router.Get("/subscriptions", List(svc, logg))
	router.Get("/subscriptions/{subscriptionID}", Get(svc, logg))
	router.Post("/subscriptions/{subscriptionID}/cancel", Cancel(svc, logg))
	return router
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func sampleSubscription() *models.Subscription {
	total := 12
	return &models.Subscription{
		ID:                     uuid.New(),
		ExternalSubscriptionID: "sub_1",
		Gateway:                enums.GatewayRazorpay,
		PlanID:                 "plan_rent",
		TenantID:               uuid.New(),
		Amount:                 decimal.RequireFromString("9000"),
		Currency:               "INR",
		Purpose:                enums.PurposeRent,
		Status:                 enums.SubscriptionStatusCreated,
		TotalCount:             &total,
	}
}

func TestCreateDefaultsPurpose(t *testing.T) {
	svc := &fakeService{sub: sampleSubscription()}
	tenant := uuid.New()
	resp := do(newRouter(svc), http.MethodPost, "/subscriptions",
		`{"tenant_id":"`+tenant.String()+`","plan_id":" plan_rent ","amount":"9000","total_count":12,"currency":"inr"}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, enums.PurposeRent, svc.created.Purpose)
	assert.Equal(t, "plan_rent", svc.created.PlanID)
	assert.Equal(t, "INR", svc.created.Currency)
	assert.Equal(t, 12, svc.created.TotalCount)

	var envelope struct {
		Data subscriptionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "sub_1", envelope.Data.ExternalSubscriptionID)
	assert.Equal(t, "9000.00", envelope.Data.Amount)
}

func TestCreateRequiresTotalCount(t *testing.T) {
	resp := do(newRouter(&fakeService{}), http.MethodPost, "/subscriptions",
		`{"tenant_id":"`+uuid.NewString()+`","plan_id":"plan_rent","amount":"9000"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateGatewayFailure(t *testing.T) {
	svc := &fakeService{err: pkgerrors.New(pkgerrors.CodeDependency, "create gateway subscription")}
	resp := do(newRouter(svc), http.MethodPost, "/subscriptions",
		`{"tenant_id":"`+uuid.NewString()+`","plan_id":"plan_rent","amount":"9000","total_count":3}`)
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestCancel(t *testing.T) {
	svc := &fakeService{sub: sampleSubscription()}
	router := newRouter(svc)

	resp := do(router, http.MethodPost, "/subscriptions/"+uuid.NewString()+"/cancel", `{"at_cycle_end":true}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, svc.atCycleEnd)

	resp = do(router, http.MethodPost, "/subscriptions/"+uuid.NewString()+"/cancel", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, svc.atCycleEnd)
}

func TestGetIncludesCharges(t *testing.T) {
	svc := &fakeService{
		sub: sampleSubscription(),
		charges: []models.SubscriptionCharge{{
			ID:               uuid.New(),
			ExternalChargeID: "pay_9",
			Amount:           decimal.RequireFromString("9000"),
			Currency:         "INR",
			ChargedAt:        time.Now().UTC(),
		}},
	}
	resp := do(newRouter(svc), http.MethodGet, "/subscriptions/"+uuid.NewString(), "")
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data detailResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Charges, 1)
	assert.Equal(t, "pay_9", envelope.Data.Charges[0].ExternalChargeID)
}

func TestGetNotFound(t *testing.T) {
	svc := &fakeService{err: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}
	resp := do(newRouter(svc), http.MethodGet, "/subscriptions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestList(t *testing.T) {
	svc := &fakeService{list: []models.Subscription{*sampleSubscription(), *sampleSubscription()}}
	resp := do(newRouter(svc), http.MethodGet, "/subscriptions?tenant_id="+uuid.NewString(), "")
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data []subscriptionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
}

func TestListRejectsBadTenant(t *testing.T) {
	resp := do(newRouter(&fakeService{}), http.MethodGet, "/subscriptions?tenant_id=nope", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
