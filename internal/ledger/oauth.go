package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"metaverse-ledger-go/internal/gateway"

	"go.uber.org/zap"
)

const (
	authorizeTitle = "Authorize Ledger Access"
	authorizeBody  = "To use this currency, please authorize access to your account on this web page:"
)

// Authorize sends the OAuth2 authorize url to the user.
func (e *Engine) Authorize(ctx context.Context, principalId string) (string, error) {
	if principalId == "" {
		return "", ErrMissingPrincipal
	}

	target := e.AuthorizeURL(principalId)
	zap.L().Info("Requesting ledger authorization", zap.String("principal_id", principalId))

	if err := e.messenger.SendURL(ctx, principalId, authorizeTitle, authorizeBody, target); err != nil {
		return target, fmt.Errorf("unable to send authorize url: %w", err)
	}
	return target, nil
}

// ExchangeAccessToken trades the authorization code from the auth_complete
// callback for an access token. On success the token is stored and a fresh
// balance is sent to the user.
func (e *Engine) ExchangeAccessToken(ctx context.Context, principalId, code string) (Submission, error) {
	if principalId == "" {
		return Submission{}, ErrMissingPrincipal
	}
	if code == "" {
		return Submission{}, errors.New("authorization code is required")
	}

	zap.L().Info("Exchanging authorization code", zap.String("principal_id", principalId))

	err := e.dispatch(ctx, gateway.Request{
		Path:        PathAccessToken,
		Method:      http.MethodPost,
		ContentType: gateway.ContentTypeForm,
		Params: gateway.Params{
			"client_id":     e.cfg.AppKey,
			"client_secret": e.cfg.AppSecret,
			"code":          code,
			"grant_type":    "authorization_code",
			"scope":         authScope,
			"redirect_uri":  e.authCallbackURL(principalId),
		},
	}, func(ctx context.Context, result gateway.Result) {
		e.handleAccessToken(ctx, principalId, result)
	})
	if err != nil {
		return Submission{}, fmt.Errorf("unable to submit access token exchange: %w", err)
	}
	return Submission{Endpoint: PathAccessToken}, nil
}

func (e *Engine) handleAccessToken(ctx context.Context, principalId string, result gateway.Result) {
	resp := responseOf(result)

	token := resp.String("access_token")
	if token == "" {
		zap.L().Error("Access token exchange failed",
			zap.String("principal_id", principalId),
			zap.String("error", resp.String("error")),
			zap.String("reason", resp.Reason()),
			zap.Error(result.Err))
		return
	}

	user, err := e.identities.Init(ctx, principalId, token)
	if err != nil {
		zap.L().Error("Unable to store access token", zap.String("principal_id", principalId), zap.Error(err))
		return
	}

	if _, err := e.Balance(ctx, user, func(ctx context.Context, r BalanceResult) {
		e.sendBalance(ctx, principalId, r.Balance)
	}); err != nil {
		zap.L().Warn("Unable to refresh balance after authorization",
			zap.String("principal_id", principalId),
			zap.Error(err))
	}
}
