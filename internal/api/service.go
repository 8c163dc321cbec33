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

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"metaverse-ledger-go/internal/hold"
	"metaverse-ledger-go/internal/ledger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const DefaultHandlerTimeout = 60 * time.Second

// HealthChecker is satisfied by the store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server serves the callbacks the ledger and users' browsers make back into
// the application.
type Server struct {
	machine    *hold.Machine
	engine     *ledger.Engine
	health     HealthChecker
	pathPrefix string
	timeout    time.Duration
}

func NewServer(machine *hold.Machine, engine *ledger.Engine, health HealthChecker, pathPrefix string, timeout time.Duration) *Server {
	if pathPrefix == "" {
		pathPrefix = ledger.DefaultPathPrefix
	}
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	return &Server{
		machine:    machine,
		engine:     engine,
		health:     health,
		pathPrefix: "/" + strings.Trim(pathPrefix, "/"),
		timeout:    timeout,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.healthz)

	r.Route(s.pathPrefix, func(r chi.Router) {
		r.Get("/asset", s.assetState)
		r.Post("/asset", s.assetState)
		r.Get("/auth_complete", s.authComplete)
		r.Get("/buy_complete", s.buyComplete)
	})

	return r
}

func (s *Server) HealthCheck(ctx context.Context) error {
	if err := s.health.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<html><body><p>%s</p></body></html>\n", message)
}
