package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Gateway {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := NewGateway(Config{BaseURL: server.URL, Timeout: timeout, HTTPClient: server.Client()})
	require.NoError(t, err)
	return g
}

func TestNewGateway_InvalidBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"relative", "ledger/api"},
		{"unparseable", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGateway(Config{BaseURL: tt.baseURL})
			assert.Error(t, err)
		})
	}
}

func TestResolveURL(t *testing.T) {
	g, err := NewGateway(Config{BaseURL: "https://ledger.example.com/api", HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	assert.Equal(t, "https://ledger.example.com/api/", g.BaseURL())
	assert.Equal(t, "https://ledger.example.com/api/transact", g.ResolveURL("transact"))
	assert.Equal(t, "https://ledger.example.com/api/oauth2/access-token", g.ResolveURL("oauth2/access-token"))
}

func TestBuildRequest_Form(t *testing.T) {
	g, err := NewGateway(Config{BaseURL: "https://ledger.example.com/", HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	req, err := g.BuildRequest(context.Background(), Request{
		Path:        "transact",
		Method:      http.MethodPost,
		Token:       "tok-1",
		ContentType: ContentTypeForm,
		Params: Params{
			"version":                1,
			"gloebit-balance-change": decimal.NewFromInt(25),
			"automated-transaction":  true,
			"platform-desc-names":    []string{"platform", "version"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
	assert.Equal(t, ContentTypeForm, req.Header.Get("Content-Type"))

	require.NoError(t, req.ParseForm())
	assert.Equal(t, "1", req.PostForm.Get("version"))
	assert.Equal(t, "25", req.PostForm.Get("gloebit-balance-change"))
	assert.Equal(t, "true", req.PostForm.Get("automated-transaction"))
	assert.Equal(t, []string{"platform", "version"}, req.PostForm["platform-desc-names"])
}

func TestBuildRequest_JSON(t *testing.T) {
	g, err := NewGateway(Config{BaseURL: "https://ledger.example.com/", HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	req, err := g.BuildRequest(context.Background(), Request{
		Path:        "transact-u2u",
		Method:      http.MethodPost,
		ContentType: ContentTypeJSON,
		Params:      Params{"gloebit-balance-change": decimal.NewFromInt(-10), "asset-code": "sword"},
	})
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get("Authorization"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(-10), body["gloebit-balance-change"])
	assert.Equal(t, "sword", body["asset-code"])
}

func TestBuildRequest_GetAppendsQuery(t *testing.T) {
	g, err := NewGateway(Config{BaseURL: "https://ledger.example.com/", HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	req, err := g.BuildRequest(context.Background(), Request{
		Path:   "balance",
		Method: http.MethodGet,
		Params: Params{"user": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", req.URL.Query().Get("user"))
}

func TestBuildRequest_Errors(t *testing.T) {
	g, err := NewGateway(Config{BaseURL: "https://ledger.example.com/", HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	_, err = g.BuildRequest(context.Background(), Request{Path: "x", Method: http.MethodPost, ContentType: "text/xml", Params: Params{"a": "b"}})
	assert.ErrorIs(t, err, ErrUnsupportedContentType)

	_, err = g.BuildRequest(context.Background(), Request{Path: "x", Method: http.MethodDelete})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestDispatch_BuildFailureSkipsContinuation(t *testing.T) {
	g, err := NewGateway(Config{BaseURL: "https://ledger.example.com/", HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	called := false
	err = g.Dispatch(context.Background(), Request{Path: "x", Method: "PATCH"}, func(context.Context, Result) {
		called = true
	})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	require.NoError(t, g.Wait(context.Background()))
	assert.False(t, called)
}

func TestDo_Success(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balance", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", ContentTypeJSON)
		_, _ = w.Write([]byte(`{"success":true,"balance":1234.5,"reason":""}`))
	}, time.Second)

	result := g.Do(context.Background(), Request{Path: "balance", Method: http.MethodPost, Token: "abc", ContentType: ContentTypeForm, Params: Params{"a": "b"}})
	require.True(t, result.OK(), "unexpected error: %v", result.Err)

	assert.True(t, result.Response.Success())
	assert.True(t, decimal.RequireFromString("1234.5").Equal(result.Response.Decimal("balance")))
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestDo_LargeBodyReadInChunks(t *testing.T) {
	reason := strings.Repeat("x", 5000)
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"reason":"` + reason + `"}`))
	}, time.Second)

	result := g.Do(context.Background(), Request{Path: "transact", Method: http.MethodGet})
	require.True(t, result.OK())
	assert.Equal(t, reason, result.Response.Reason())
}

func TestDo_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"not json", "<html>oops</html>"},
		{"null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)

			result := g.Do(context.Background(), Request{Path: "balance", Method: http.MethodGet})
			assert.ErrorIs(t, result.Err, ErrMalformedResponse)
			assert.ErrorIs(t, result.Err, ErrTransportFailure)
		})
	}
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	result := g.Do(context.Background(), Request{Path: "balance", Method: http.MethodGet})
	assert.ErrorIs(t, result.Err, ErrRequestTimeout)
	assert.ErrorIs(t, result.Err, ErrTransportFailure)
}

func TestDispatch_ContinuationRunsOnceAfterCallerCancels(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true}`))
	}, time.Second)

	type key struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "carried"))

	var calls atomic.Int32
	var carried atomic.Value
	err := g.Dispatch(ctx, Request{Path: "balance", Method: http.MethodGet}, func(ctx context.Context, r Result) {
		calls.Add(1)
		carried.Store(ctx.Value(key{}))
		assert.True(t, r.OK())
	})
	require.NoError(t, err)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, g.Wait(waitCtx))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "carried", carried.Load())
}

func TestDispatch_ContinuationPanicIsContained(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}, time.Second)

	err := g.Dispatch(context.Background(), Request{Path: "balance", Method: http.MethodGet}, func(context.Context, Result) {
		panic("boom")
	})
	require.NoError(t, err)
	require.NoError(t, g.Wait(context.Background()))
}

func TestDo_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	g, err := NewGateway(Config{BaseURL: base, Timeout: time.Second, HTTPClient: http.DefaultClient})
	require.NoError(t, err)

	result := g.Do(context.Background(), Request{Path: "balance", Method: http.MethodGet})
	require.Error(t, result.Err)
	assert.True(t, errors.Is(result.Err, ErrTransportFailure))
}
