/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJSON = "application/json"

	DefaultTimeout = 30 * time.Second

	readChunkSize = 1024
)

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrUnsupportedMethod      = errors.New("unsupported request method")
	ErrTransportFailure       = errors.New("ledger transport failure")
	ErrRequestTimeout         = fmt.Errorf("%w: request deadline exceeded", ErrTransportFailure)
	ErrMalformedResponse      = fmt.Errorf("%w: malformed response", ErrTransportFailure)
)

// Params are the request parameters. Values may be strings, booleans,
// numbers, fmt.Stringers (uuid, decimal) or string slices.
type Params map[string]any

type Request struct {
	Path        string
	Method      string
	Token       string
	ContentType string
	Params      Params
}

// Result is handed to a Continuation exactly once per dispatched request.
// Err is nil only when the body was read and decoded as a JSON object.
type Result struct {
	Response   Response
	StatusCode int
	Err        error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Continuation runs on the dispatch goroutine once the request completes.
type Continuation func(ctx context.Context, result Result)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Gateway struct {
	baseURL  *url.URL
	client   *http.Client
	timeout  time.Duration
	inflight sync.WaitGroup
}

func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ledger base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ledger base url %q must be absolute", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	client := cfg.HTTPClient
	if client == nil {
		client, err = newHTTPClient()
		if err != nil {
			return nil, fmt.Errorf("unable to create http client: %w", err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	zap.L().Info("Ledger gateway initialized",
		zap.String("base_url", base.String()),
		zap.Duration("timeout", timeout))

	return &Gateway{
		baseURL: base,
		client:  client,
		timeout: timeout,
	}, nil
}

// BaseURL returns the ledger root, always ending in "/".
func (g *Gateway) BaseURL() string {
	return g.baseURL.String()
}

// ResolveURL resolves a path relative to the ledger root.
func (g *Gateway) ResolveURL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return g.baseURL.String() + strings.TrimPrefix(path, "/")
	}
	return g.baseURL.ResolveReference(ref).String()
}

// BuildRequest encodes req against the ledger root. GET parameters go in the
// query string; POST and PUT parameters are encoded per ContentType.
func (g *Gateway) BuildRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := g.ResolveURL(req.Path)

	var httpReq *http.Request
	var err error

	switch req.Method {
	case http.MethodGet:
		if len(req.Params) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + encodeForm(req.Params).Encode()
		}
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("unable to create request: %w", err)
		}
	case http.MethodPost, http.MethodPut:
		body, err := encodeBody(req.ContentType, req.Params)
		if err != nil {
			return nil, err
		}
		if len(req.Params) == 0 {
			zap.L().Warn("Sending ledger request without parameters",
				zap.String("path", req.Path),
				zap.String("method", req.Method))
		}
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("unable to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", req.ContentType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	httpReq.Header.Set("Accept", ContentTypeJSON)
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	return httpReq, nil
}

// Dispatch builds req and sends it without blocking the caller. The
// continuation is invoked exactly once with the outcome. A non-nil error
// means the request could not be built and the continuation will not run.
//
// The request outlives cancellation of ctx and is bounded only by the
// gateway timeout; values carried on ctx are passed to the continuation.
func (g *Gateway) Dispatch(ctx context.Context, req Request, cont Continuation) error {
	detached := context.WithoutCancel(ctx)
	reqCtx, cancel := context.WithTimeout(detached, g.timeout)

	httpReq, err := g.BuildRequest(reqCtx, req)
	if err != nil {
		cancel()
		zap.L().Error("Unable to build ledger request",
			zap.String("path", req.Path),
			zap.String("method", req.Method),
			zap.Error(err))
		return err
	}

	zap.L().Debug("Dispatching ledger request",
		zap.String("path", req.Path),
		zap.String("method", req.Method))

	g.inflight.Add(1)
	go func() {
		defer g.inflight.Done()
		defer cancel()

		result := g.execute(reqCtx, httpReq)
		if result.Err != nil {
			zap.L().Warn("Ledger request failed",
				zap.String("path", req.Path),
				zap.Int("status", result.StatusCode),
				zap.Error(result.Err))
		}

		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("Ledger continuation panicked",
					zap.String("path", req.Path),
					zap.Any("panic", r))
			}
		}()
		if cont != nil {
			cont(detached, result)
		}
	}()

	return nil
}

// Do dispatches req and waits for its result or for ctx to end.
func (g *Gateway) Do(ctx context.Context, req Request) Result {
	ch := make(chan Result, 1)
	if err := g.Dispatch(ctx, req, func(_ context.Context, r Result) { ch <- r }); err != nil {
		return Result{Err: err}
	}

	select {
	case r := <-ch:
		return r
	case <-ctx.Done():
		return Result{Err: fmt.Errorf("%w: %v", ErrTransportFailure, ctx.Err())}
	}
}

// Wait blocks until every dispatched request has run its continuation.
func (g *Gateway) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) execute(ctx context.Context, req *http.Request) Result {
	resp, err := g.client.Do(req)
	if err != nil {
		return Result{Err: classifyTransportError(ctx, err)}
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	buf := make([]byte, readChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		body.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{StatusCode: resp.StatusCode, Err: classifyTransportError(ctx, err)}
		}
	}

	if body.Len() == 0 {
		return Result{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: empty body (status %d)", ErrMalformedResponse, resp.StatusCode)}
	}

	decoder := json.NewDecoder(&body)
	decoder.UseNumber()

	var decoded map[string]any
	if err := decoder.Decode(&decoded); err != nil {
		return Result{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if decoded == nil {
		return Result{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: body is not a JSON object", ErrMalformedResponse)}
	}

	return Result{Response: Response(decoded), StatusCode: resp.StatusCode}
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRequestTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrRequestTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransportFailure, err)
}
