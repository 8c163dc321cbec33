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

package ledger

import (
	"context"
	"fmt"
	"net/http"

	"metaverse-ledger-go/internal/gateway"
	"metaverse-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceContinuation receives the result of an asynchronous balance request.
type BalanceContinuation func(ctx context.Context, result BalanceResult)

// Balance requests the user's ledger balance. A token the ledger no longer
// recognizes is invalidated and the balance reported as zero.
func (e *Engine) Balance(ctx context.Context, user models.User, cont BalanceContinuation) (Submission, error) {
	zap.L().Info("Requesting ledger balance", zap.String("principal_id", user.PrincipalId))

	req := gateway.Request{
		Path:   PathBalance,
		Method: http.MethodGet,
		Token:  user.Token,
	}

	err := e.dispatch(ctx, req, func(ctx context.Context, result gateway.Result) {
		out := e.handleBalance(ctx, user, result)
		if cont != nil {
			cont(ctx, out)
		}
	})
	if err != nil {
		return Submission{}, fmt.Errorf("unable to submit balance request: %w", err)
	}
	return Submission{Endpoint: PathBalance}, nil
}

// BalanceSync is the blocking form of Balance.
func (e *Engine) BalanceSync(ctx context.Context, user models.User) (decimal.Decimal, error) {
	ch := make(chan BalanceResult, 1)
	if _, err := e.Balance(ctx, user, func(_ context.Context, r BalanceResult) { ch <- r }); err != nil {
		return decimal.Zero, err
	}

	select {
	case r := <-ch:
		return r.Balance, r.Err
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

// RefreshBalance fetches the balance for principalId and forwards it to the
// user's messenger.
func (e *Engine) RefreshBalance(ctx context.Context, principalId string) error {
	user, err := e.identities.Get(ctx, principalId)
	if err != nil {
		return err
	}

	_, err = e.Balance(ctx, user, func(ctx context.Context, r BalanceResult) {
		e.sendBalance(ctx, principalId, r.Balance)
	})
	return err
}

func (e *Engine) handleBalance(ctx context.Context, user models.User, result gateway.Result) BalanceResult {
	resp := responseOf(result)
	out := BalanceResult{
		PrincipalId: user.PrincipalId,
		Balance:     decimal.Zero,
		Success:     resp.Success(),
		Reason:      resp.Reason(),
		Err:         result.Err,
	}

	if out.Success {
		out.Balance = resp.Decimal("balance")
		e.recordBalance(ctx, user.PrincipalId, out.Balance, PathBalance, "")

		zap.L().Info("Ledger balance received",
			zap.String("principal_id", user.PrincipalId),
			zap.String("balance", out.Balance.String()))
		return out
	}

	out.Failure = ClassifyBalanceFailure(out.Reason)
	switch out.Failure {
	case FailureUnknownToken:
		// Most likely the user revoked this application on the ledger.
		e.invalidate(ctx, user)
	default:
		zap.L().Error("Unable to get ledger balance",
			zap.String("principal_id", user.PrincipalId),
			zap.String("reason", out.Reason),
			zap.Error(result.Err))
	}
	return out
}
