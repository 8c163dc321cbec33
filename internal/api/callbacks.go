package api

import (
	"html"
	"net/http"

	"metaverse-ledger-go/internal/hold"
	"metaverse-ledger-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgAuthComplete   = "Authorization received. You may close this window and return to the world."
	msgAuthFailed     = "Authorization could not be completed. Please try again from the world."
	msgBuyComplete    = "Thank you for your purchase. Your balance will update shortly."
	msgMissingAgentId = "Missing agentId."
)

// assetState applies a ledger hold callback. The ledger reads success and
// reason from the body, so the status is always 200.
func (s *Server) assetState(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		zap.L().Warn("Unable to parse hold callback", zap.Error(err))
	}
	id := r.Form.Get("id")
	state := r.Form.Get("state")

	transactionId, err := uuid.Parse(id)
	if err != nil {
		zap.L().Warn("Hold callback with invalid id", zap.String("id", id), zap.String("state", state))
		respondJSON(w, http.StatusOK, models.HoldStateResult{Reason: hold.MsgNotFound, Id: id, State: state})
		return
	}

	result, err := s.machine.ProcessStateRequest(r.Context(), transactionId, state)
	if err != nil {
		zap.L().Warn("Hold callback rejected",
			zap.String("transaction_id", id),
			zap.String("state", state),
			zap.String("reason", result.Reason),
			zap.Error(err))
	}
	respondJSON(w, http.StatusOK, result)
}

// authComplete receives the OAuth2 redirect and exchanges the code for a
// token in the background.
func (s *Server) authComplete(w http.ResponseWriter, r *http.Request) {
	agentId := r.URL.Query().Get("agentId")
	code := r.URL.Query().Get("code")
	if agentId == "" {
		respondText(w, http.StatusBadRequest, msgMissingAgentId)
		return
	}

	if _, err := s.engine.ExchangeAccessToken(r.Context(), agentId, code); err != nil {
		zap.L().Error("Unable to exchange authorization code",
			zap.String("principal_id", agentId),
			zap.Error(err))
		respondText(w, http.StatusBadRequest, html.EscapeString(msgAuthFailed))
		return
	}
	respondText(w, http.StatusOK, html.EscapeString(msgAuthComplete))
}

// buyComplete is where the ledger returns the browser after a currency
// purchase. The new balance is pushed to the user.
func (s *Server) buyComplete(w http.ResponseWriter, r *http.Request) {
	agentId := r.URL.Query().Get("agentId")
	if agentId == "" {
		respondText(w, http.StatusBadRequest, msgMissingAgentId)
		return
	}

	if err := s.engine.RefreshBalance(r.Context(), agentId); err != nil {
		zap.L().Error("Unable to refresh balance after purchase",
			zap.String("principal_id", agentId),
			zap.Error(err))
	}
	respondText(w, http.StatusOK, html.EscapeString(msgBuyComplete))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, models.HealthStatus{Status: "unhealthy", Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, models.HealthStatus{Status: "ok"})
}
