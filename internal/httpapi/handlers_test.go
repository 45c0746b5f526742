package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"glowdesk/backend/internal/domain"
	"glowdesk/backend/internal/service"
	"glowdesk/backend/internal/store"
	"glowdesk/backend/internal/store/memory"
	"glowdesk/backend/internal/xid"
)

const testOrigin = "http://127.0.0.1:5173"

var testNow = time.Date(2025, time.November, 12, 9, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newTestHandler wires a seeded store, the real service and a real
// AuthManager so handler tests cover the full request path.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	clock := store.FixedClock(testNow)
	repo, err := memory.NewSeeded(memory.Options{
		Clock:        clock,
		IDs:          xid.NewSequence("", 100),
		StrictStock:  true,
		PasswordCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	svc := service.New(repo, zap.NewNop(), clock, time.UTC)
	auth := NewAuthManager(testSecret, time.Hour, nil)
	return New(svc, auth, zap.NewNop(), testOrigin).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    memory.AdminEmail,
		Password: memory.AdminPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[domain.LoginResponse](t, rec).AccessToken
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(t, newTestHandler(t), http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["ok"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/products", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email:    memory.AdminEmail,
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginMeLogout(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody[domain.User](t, rec)
	assert.Equal(t, "Administrador", user.Name)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndsEverySessionToken(t *testing.T) {
	h := newTestHandler(t)
	first := login(t, h)
	second := login(t, h)

	require.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/api/v1/products", second, nil).Code)
	require.Equal(t, http.StatusNoContent, doRequest(t, h, http.MethodPost, "/api/v1/auth/logout", first, nil).Code)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/products", second, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errSessionEnded.Error(), decodeBody[map[string]string](t, rec)["error"])

	third := login(t, h)
	assert.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/api/v1/auth/me", third, nil).Code)
}

func TestTokenFromPreviousProcessIsRejected(t *testing.T) {
	token := login(t, newTestHandler(t))

	restarted := newTestHandler(t)
	rec := doRequest(t, restarted, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSellProductAdjustsStock(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleDraft{ProductID: "1", Quantity: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[domain.Sale](t, rec)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "2025-11-12", sale.Date.String())

	rec = doRequest(t, h, http.MethodGet, "/api/v1/products/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 145, decodeBody[domain.Product](t, rec).Stock)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/sales/"+sale.ID+"/profit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profit := decodeBody[struct {
		Profit     decimal.Decimal `json:"profit"`
		Historical decimal.Decimal `json:"historical_profit"`
	}](t, rec)
	assert.True(t, profit.Profit.Equal(decimal.NewFromInt(250)))
	assert.True(t, profit.Historical.Equal(decimal.NewFromInt(250)))
}

func TestSellProductErrors(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleDraft{ProductID: "1", Quantity: 1000})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleDraft{ProductID: "missing", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleDraft{ProductID: "1", Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductLifecycle(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/products", token, domain.ProductInput{
		Code:      "PROD-003",
		Name:      "Crema Nueva",
		CostPrice: decimal.NewFromInt(20),
		SalePrice: decimal.NewFromInt(45),
		Stock:     10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[domain.Product](t, rec)
	assert.Equal(t, domain.ProductActive, created.Status)

	stock := 3
	rec = doRequest(t, h, http.MethodPatch, "/api/v1/products/"+created.ID, token, domain.ProductPatch{Stock: &stock})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeBody[domain.Product](t, rec).Stock)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/products?q=crema", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Product](t, rec)["products"], 1)

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/products/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/products/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSalesByDate(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sales?date=2025-11-10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[map[string][]domain.Sale](t, rec)["sales"], 1)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/sales?date=10/11/2025", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentsAndStats(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/documents", token, domain.DocumentInput{
		Name: "factura.pdf",
		URL:  "https://files.example/factura.pdf",
		Type: "application/pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decodeBody[domain.Document](t, rec)
	assert.Equal(t, domain.DefaultDocumentCategory, doc.Category)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/documents/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[domain.DocumentStats](t, rec)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.PDFs)

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/documents/"+doc.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/settings/theme/toggle", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "light", decodeBody[map[string]string](t, rec)["theme"])

	rec = doRequest(t, h, http.MethodPut, "/api/v1/settings/currency", token, valueRequest{Value: "€"})
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decodeBody[domain.Settings](t, rec)
	assert.Equal(t, "€", settings.Currency)
	assert.Equal(t, domain.ThemeLight, settings.Theme)
}

func TestDashboardAndReports(t *testing.T) {
	h := newTestHandler(t)
	token := login(t, h)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[domain.DashboardSummary](t, rec)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(3065)))
	assert.True(t, summary.TotalProfit.Equal(decimal.NewFromInt(1525)))
	require.NotNil(t, summary.BestProduct)
	assert.Equal(t, "1", summary.BestProduct.ID)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports?period=year", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PeriodYear, decodeBody[domain.Report](t, rec).Period)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/buckets/week?n=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	buckets := decodeBody[map[string][]domain.Bucket](t, rec)["buckets"]
	require.Len(t, buckets, 2)
	assert.Equal(t, "2025-W46", buckets[1].Label)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/buckets/fortnight", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/reports/buckets/day?n=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRouteCountsRequests(t *testing.T) {
	clock := store.FixedClock(testNow)
	repo, err := memory.NewSeeded(memory.Options{Clock: clock, PasswordCost: bcrypt.MinCost})
	require.NoError(t, err)
	svc := service.New(repo, zap.NewNop(), clock, time.UTC)
	h := New(svc, NewAuthManager(testSecret, time.Hour, nil), zap.NewNop(), testOrigin).WithMetrics(true).Handler()

	require.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/healthz", "", nil).Code)

	rec := doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `glowdesk_http_requests_total{method="GET",route="/healthz",status="200"}`)
}
