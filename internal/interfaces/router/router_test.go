package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"propshare-backend/internal/config"
	"propshare-backend/internal/constants"
	"propshare-backend/internal/domain"
	"propshare-backend/internal/interfaces/handlers/payments"
	"propshare-backend/internal/middleware"
	"propshare-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_router"

type testApp struct {
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	db := testdb.Open(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	cfg := &config.Config{
		Env:                  "test",
		PaymentWebhookSecret: webhookSecret,
		HealthAdminKey:       "key",
		SuperadminRole:       constants.Superadmin,
		Tx:                   config.TxConfig{Timeout: 10 * time.Second, MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		CapabilityCacheTTL:   time.Minute,
	}
	app, err := New(cfg, db, rdb, prometheus.NewRegistry())
	require.NoError(t, err)
	return &testApp{app: app, db: db, mr: mr}
}

func (a *testApp) login(t *testing.T, u domain.User) string {
	t.Helper()
	sid := uuid.NewString()
	b, err := json.Marshal(map[string]interface{}{"user": middleware.SessionUser{UserID: u.UserID.String(), Email: u.Email, Role: u.Role}})
	require.NoError(t, err)
	require.NoError(t, a.mr.Set(middleware.SessionRedisPrefix+sid, string(b)))
	return sid
}

func (a *testApp) do(t *testing.T, method, path, sid string, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sid})
	}
	resp, err := a.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRoutes_AuthAndRoles(t *testing.T) {
	a := setupApp(t)
	investor := domain.User{Email: "ada@example.com", Role: constants.User, Tier: "basic", KYCStatus: domain.KYCStatusVerified}
	require.NoError(t, a.db.Create(&investor).Error)
	sid := a.login(t, investor)

	assert.Equal(t, 401, a.do(t, "GET", "/api/v1/ownerships", "", nil).StatusCode)
	assert.Equal(t, 200, a.do(t, "GET", "/api/v1/ownerships", sid, nil).StatusCode)
	assert.Equal(t, 403, a.do(t, "POST", "/api/v1/admin/properties", sid, []byte(`{}`)).StatusCode)

	resp := a.do(t, "POST", "/api/v1/exits", sid, []byte(`{}`))
	assert.Equal(t, 403, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	details := body["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Equal(t, "not_granted", details["reason"])
}

func TestRoutes_WebhookToOwnership(t *testing.T) {
	a := setupApp(t)
	ctxUser := domain.User{Email: "ada@example.com", Role: constants.User, Tier: "basic", KYCStatus: domain.KYCStatusVerified}
	require.NoError(t, a.db.Create(&ctxUser).Error)
	var caps []domain.Capability
	require.NoError(t, a.db.Where("default_on_signup = ?", true).Find(&caps).Error)
	for _, c := range caps {
		require.NoError(t, a.db.Create(&domain.UserCapability{UserID: ctxUser.UserID, CapabilityID: c.CapabilityID}).Error)
	}

	adminUser := domain.User{Email: "ops@example.com", Role: constants.Admin, Tier: "basic", KYCStatus: domain.KYCStatusVerified}
	require.NoError(t, a.db.Create(&adminUser).Error)
	adminSID := a.login(t, adminUser)

	resp := a.do(t, "POST", "/api/v1/admin/properties", adminSID, []byte(`{"title":"Lekki Phase 1","total_units":10,"price_per_unit":"500000"}`))
	require.Equal(t, 201, resp.StatusCode)
	var created struct {
		Data domain.Property `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	p := created.Data
	require.Equal(t, 200, a.do(t, "POST", "/api/v1/admin/properties/"+p.PropertyID.String()+"/publish", adminSID, nil).StatusCode)

	event := []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"reference":"pay_abc","amount":"1500000","currency":"NGN","metadata":{"user_id":"` +
		ctxUser.UserID.String() + `","property_id":"` + p.PropertyID.String() + `","units":"3"}}}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := "t=" + ts + ",v1=" + payments.Sign(event, ts, webhookSecret)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/v1/payments/webhook", bytes.NewReader(event))
		req.Header.Set(payments.SignatureHeader, sig)
		resp, err := a.app.Test(req)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
	}

	var got domain.Property
	require.NoError(t, a.db.Where("property_id = ?", p.PropertyID).First(&got).Error)
	assert.Equal(t, int64(7), got.AvailableUnits)

	var completed int64
	require.NoError(t, a.db.Model(&domain.Transaction{}).Where("external_reference = ?", "pay_abc").Count(&completed).Error)
	assert.Equal(t, int64(1), completed)

	var o domain.Ownership
	require.NoError(t, a.db.Where("user_id = ?", ctxUser.UserID).First(&o).Error)
	assert.Equal(t, int64(3), o.Units)
	assert.True(t, o.AcquisitionPrice.Equal(decimal.NewFromInt(1_500_000)))
}

func TestRoutes_MetricsAndHealth(t *testing.T) {
	a := setupApp(t)
	assert.Equal(t, 200, a.do(t, "GET", "/health/json", "", nil).StatusCode)

	resp := a.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, 200, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), "ledger_tx_retries_total"))
}
