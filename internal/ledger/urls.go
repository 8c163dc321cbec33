package ledger

import (
	"net/url"

	"github.com/google/uuid"
)

// HoldURL is the callback the ledger invokes to move a hold to state.
func (e *Engine) HoldURL(transactionId uuid.UUID, state string) string {
	u := e.callbackBase.JoinPath(e.cfg.PathPrefix, "asset")
	u.RawQuery = url.Values{
		"id":    {transactionId.String()},
		"state": {state},
	}.Encode()
	return u.String()
}

func (e *Engine) authCallbackURL(principalId string) string {
	u := e.callbackBase.JoinPath(e.cfg.PathPrefix, "auth_complete")
	u.RawQuery = url.Values{"agentId": {principalId}}.Encode()
	return u.String()
}

func (e *Engine) buyCallbackURL(principalId string) string {
	u := e.callbackBase.JoinPath(e.cfg.PathPrefix, "buy_complete")
	u.RawQuery = url.Values{"agentId": {principalId}}.Encode()
	return u.String()
}

// AuthorizeURL is the browser url that starts OAuth2 authorization for a
// principal. The ledger redirects back to the auth_complete callback.
func (e *Engine) AuthorizeURL(principalId string) string {
	params := url.Values{
		"client_id":     {e.cfg.AppKey},
		"scope":         {authScope},
		"redirect_uri":  {e.authCallbackURL(principalId)},
		"response_type": {"code"},
		"user":          {principalId},
	}
	if e.cfg.AppKeyAlias != "" {
		params.Set("r", e.cfg.AppKeyAlias)
	}
	return e.gateway.ResolveURL(PathAuthorize) + "?" + params.Encode()
}

// PurchaseURL is the browser url where a principal buys currency. The ledger
// returns the browser to the buy_complete callback.
func (e *Engine) PurchaseURL(principalId string) string {
	params := url.Values{
		"r":         {e.cfg.AppKeyAlias},
		"return-to": {e.buyCallbackURL(principalId)},
	}
	return e.gateway.ResolveURL(PathPurchase) + "?reset&" + params.Encode()
}

// SubscriptionAuthorizationURL is where a user approves a pending
// subscription authorization.
func (e *Engine) SubscriptionAuthorizationURL(subscriptionAuthorizationId string) string {
	return e.gateway.ResolveURL(PathAuthorizeSubscription + url.PathEscape(subscriptionAuthorizationId) + "/")
}
