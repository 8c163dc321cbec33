package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"metaverse-ledger-go/internal/database"
	"metaverse-ledger-go/internal/gateway"
	"metaverse-ledger-go/internal/hold"
	"metaverse-ledger-go/internal/ledger"
	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/registry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDelivery struct {
	mock.Mock
}

func (m *mockDelivery) EnactHold(ctx context.Context, asset models.Asset) (bool, string) {
	args := m.Called(asset.TransactionId)
	return args.Bool(0), args.String(1)
}

func (m *mockDelivery) ConsumeHold(ctx context.Context, asset models.Asset) (bool, string) {
	args := m.Called(asset.TransactionId)
	return args.Bool(0), args.String(1)
}

func (m *mockDelivery) CancelHold(ctx context.Context, asset models.Asset) (bool, string) {
	args := m.Called(asset.TransactionId)
	return args.Bool(0), args.String(1)
}

type recordingMessenger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func (m *recordingMessenger) SendURL(context.Context, string, string, string, string) error {
	return nil
}

func (m *recordingMessenger) SendBalance(_ context.Context, principalId string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[principalId] = balance
	return nil
}

func (m *recordingMessenger) balance(principalId string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[principalId]
	return b, ok
}

type failingHealth struct{}

func (failingHealth) Ping(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	db         *database.Service
	holds      *registry.HoldRegistry
	identities *registry.IdentityCache
	delivery   *mockDelivery
	messenger  *recordingMessenger
	engine     *ledger.Engine
	server     *httptest.Server
}

func newFixture(t *testing.T, prefix string) *fixture {
	t.Helper()
	ctx := context.Background()

	ledgerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", gateway.ContentTypeJSON)
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case ledger.PathAccessToken:
			_, _ = w.Write([]byte(`{"access_token":"tok-1"}`))
		case ledger.PathBalance:
			_, _ = w.Write([]byte(`{"success":true,"balance":300}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ledgerServer.Close)

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	gw, err := gateway.NewGateway(gateway.Config{BaseURL: ledgerServer.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	f := &fixture{
		db:         db,
		holds:      registry.NewHoldRegistry(db),
		identities: registry.NewIdentityCache(db),
		delivery:   &mockDelivery{},
		messenger:  &recordingMessenger{balances: make(map[string]decimal.Decimal)},
	}

	f.engine, err = ledger.NewEngine(ledger.Config{
		AppKey:          "app-key",
		AppSecret:       "secret",
		CallbackBaseURL: "https://world.example.com/",
		PathPrefix:      prefix,
	}, ledger.Dependencies{
		Gateway:       gw,
		Identities:    f.identities,
		Holds:         f.holds,
		Subscriptions: registry.NewSubscriptionRegistry(db),
		Balances:      db,
		Messenger:     f.messenger,
	})
	require.NoError(t, err)

	srv := NewServer(hold.NewMachine(f.holds, f.delivery), f.engine, db, prefix, time.Second)
	f.server = httptest.NewServer(srv.Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) seedHold(t *testing.T) models.Asset {
	t.Helper()

	asset, err := f.holds.Init(context.Background(), models.NewAsset(uuid.New(), "buyer", "seller"))
	require.NoError(t, err)
	return asset
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Wait(ctx))
}

func decodeResult(t *testing.T, resp *http.Response) models.HoldStateResult {
	t.Helper()
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result models.HoldStateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestAssetCallback_GetEnact(t *testing.T) {
	f := newFixture(t, "")
	asset := f.seedHold(t)
	f.delivery.On("EnactHold", asset.TransactionId).Return(true, "").Once()

	resp, err := http.Get(f.server.URL + "/gloebit/asset?id=" + asset.TransactionId.String() + "&state=enact")
	require.NoError(t, err)

	result := decodeResult(t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, asset.TransactionId.String(), result.Id)
	assert.Equal(t, hold.StateEnact, result.State)
	f.delivery.AssertExpectations(t)
}

func TestAssetCallback_PostForm(t *testing.T) {
	f := newFixture(t, "")
	asset := f.seedHold(t)
	f.delivery.On("EnactHold", asset.TransactionId).Return(true, "").Once()
	f.delivery.On("ConsumeHold", asset.TransactionId).Return(true, "").Once()

	for _, state := range []string{hold.StateEnact, hold.StateConsume} {
		resp, err := http.PostForm(f.server.URL+"/gloebit/asset", url.Values{
			"id":    {asset.TransactionId.String()},
			"state": {state},
		})
		require.NoError(t, err)
		assert.True(t, decodeResult(t, resp).Success, state)
	}

	stored, err := f.holds.Get(context.Background(), asset.TransactionId)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Consumed)
	assert.Equal(t, 0, f.holds.Active())
}

func TestAssetCallback_Rejections(t *testing.T) {
	f := newFixture(t, "")
	asset := f.seedHold(t)

	tests := []struct {
		name   string
		query  string
		reason string
	}{
		{"invalid id", "id=not-a-uuid&state=enact", hold.MsgNotFound},
		{"unknown id", "id=" + uuid.NewString() + "&state=enact", hold.MsgNotFound},
		{"unknown state", "id=" + asset.TransactionId.String() + "&state=refund", hold.MsgUnrecognizedState},
		{"consume before enact", "id=" + asset.TransactionId.String() + "&state=consume", "Consume: not yet enacted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(f.server.URL + "/gloebit/asset?" + tt.query)
			require.NoError(t, err)

			result := decodeResult(t, resp)
			assert.False(t, result.Success)
			assert.Equal(t, tt.reason, result.Reason)
		})
	}
	f.delivery.AssertNotCalled(t, "ConsumeHold", mock.Anything)
}

func TestAuthComplete(t *testing.T) {
	f := newFixture(t, "/world-money/")

	resp, err := http.Get(f.server.URL + "/world-money/auth_complete?agentId=agent-1&code=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.drain(t)
	user, err := f.identities.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", user.Token)

	balance, ok := f.messenger.balance("agent-1")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(300).Equal(balance))
}

func TestAuthComplete_BadRequests(t *testing.T) {
	f := newFixture(t, "")

	for _, query := range []string{"code=abc", "agentId=agent-1"} {
		resp, err := http.Get(f.server.URL + "/gloebit/auth_complete?" + query)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestBuyComplete(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.identities.Init(context.Background(), "agent-1", "tok-1")
	require.NoError(t, err)

	resp, err := http.Get(f.server.URL + "/gloebit/buy_complete?agentId=agent-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	f.drain(t)
	balance, ok := f.messenger.balance("agent-1")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(300).Equal(balance))
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status models.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
}

func TestHealthz_Unhealthy(t *testing.T) {
	srv := NewServer(nil, nil, failingHealth{}, "", 0)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
