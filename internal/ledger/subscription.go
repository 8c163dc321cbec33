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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	subscriptionAuthorizationTitle = "Authorize Debit Script"
	subscriptionAuthorizationBody  = "To authorize this object:\n   %s\n   %s\n\nPlease visit this web page:"
)

// CreateSubscription registers sub with the ledger. On success the ledger's
// subscription id and enabled flag are stored.
func (e *Engine) CreateSubscription(ctx context.Context, sub models.Subscription) (Submission, error) {
	if sub.AppKey != e.cfg.AppKey {
		zap.L().Error("Subscription application key differs from engine",
			zap.String("object_id", sub.ObjectId.String()),
			zap.String("subscription_app_key", sub.AppKey),
			zap.String("app_key", e.cfg.AppKey))
		return Submission{}, fmt.Errorf("%w: %s", ErrApplicationKeyMismatch, sub.AppKey)
	}

	zap.L().Info("Submitting create-subscription",
		zap.String("object_id", sub.ObjectId.String()),
		zap.String("object_name", sub.ObjectName))

	params := e.baseParams()
	params["client_id"] = e.cfg.AppKey
	params["client_secret"] = e.cfg.AppSecret
	params["local-id"] = sub.ObjectId.String()
	params["name"] = sub.ObjectName
	params["description"] = sub.Description
	params["additional-details"] = additionalDetails

	err := e.dispatch(ctx, gateway.Request{
		Path:        PathCreateSubscription,
		Method:      http.MethodPost,
		ContentType: gateway.ContentTypeJSON,
		Params:      params,
	}, func(ctx context.Context, result gateway.Result) {
		e.handleCreateSubscription(ctx, sub, result)
	})
	if err != nil {
		return Submission{}, fmt.Errorf("unable to submit create-subscription: %w", err)
	}
	return Submission{Endpoint: PathCreateSubscription}, nil
}

func (e *Engine) handleCreateSubscription(ctx context.Context, sub models.Subscription, result gateway.Result) {
	resp := responseOf(result)
	success := resp.Success()
	reason := resp.Reason()
	status := resp.Status()

	zap.L().Info("Create-subscription completed",
		zap.String("object_id", sub.ObjectId.String()),
		zap.Bool("success", success),
		zap.String("reason", reason),
		zap.String("status", status),
		zap.Error(result.Err))

	outcome := SubscriptionOutcome{Response: resp, Err: result.Err}

	if success {
		subscriptionId, err := uuid.Parse(resp.String("id"))
		if err != nil {
			zap.L().Error("Ledger returned an invalid subscription id",
				zap.String("object_id", sub.ObjectId.String()),
				zap.String("id", resp.String("id")),
				zap.Error(err))
			outcome.Failure = FailureUnclassified
		} else {
			sub.SubscriptionId = subscriptionId
			sub.Enabled = resp.Bool("enabled")
			if err := e.subscriptions.Store(ctx, sub); err != nil {
				zap.L().Error("Unable to store created subscription",
					zap.String("object_id", sub.ObjectId.String()),
					zap.Error(err))
			}
			if status == StatusDuplicate {
				zap.L().Info("Subscription already existed on the ledger",
					zap.String("subscription_id", subscriptionId.String()))
			}
		}
	} else {
		outcome.Failure = ClassifySubscriptionFailure(reason)
		switch outcome.Failure {
		case FailureDuplicateSubscription:
			zap.L().Error("A different subscription exists for this object",
				zap.String("object_id", sub.ObjectId.String()),
				zap.String("existing_subscription_id", resp.String("existing-subscription-id")),
				zap.String("existing_subscription_name", resp.String("existing-subscription-name")),
				zap.String("existing_subscription_description", resp.String("existing-subscription-description")),
				zap.String("existing_subscription_additional_details", resp.String("existing-subscription-additional_details")),
				zap.String("existing_subscription_enabled", resp.String("existing-subscription-enabled")),
				zap.String("existing_subscription_ctime", resp.String("existing-subscription-ctime")))
		default:
			zap.L().Error("Unable to create subscription",
				zap.String("object_id", sub.ObjectId.String()),
				zap.String("reason", reason),
				zap.String("failure", string(outcome.Failure)))
		}
	}

	outcome.Subscription = sub
	e.notifier.OnSubscriptionCreated(ctx, outcome)
}

// CreateSubscriptionAuthorization asks the ledger for permission for sub to
// debit sender automatically. A pending authorization is sent to the sender
// as an approval url. Rejections are not retried.
func (e *Engine) CreateSubscriptionAuthorization(ctx context.Context, sub models.Subscription, sender models.User, senderName string) (Submission, error) {
	if !sub.Established() {
		return Submission{}, ErrSubscriptionNotReady
	}

	zap.L().Info("Submitting create-subscription-authorization",
		zap.String("subscription_id", sub.SubscriptionId.String()),
		zap.String("principal_id", sender.PrincipalId))

	params := e.baseParams()
	params["request-created"] = e.requestCreated()
	params["username-on-application"] = senderName
	params["user-id-on-application"] = sender.PrincipalId
	params["additional-details"] = additionalDetails
	params["subscription-id"] = sub.SubscriptionId.String()

	err := e.dispatch(ctx, gateway.Request{
		Path:        PathCreateSubscriptionAuthorization,
		Method:      http.MethodPost,
		Token:       sender.Token,
		ContentType: gateway.ContentTypeJSON,
		Params:      params,
	}, func(ctx context.Context, result gateway.Result) {
		e.handleCreateSubscriptionAuthorization(ctx, sub, sender, result)
	})
	if err != nil {
		return Submission{}, fmt.Errorf("unable to submit create-subscription-authorization: %w", err)
	}
	return Submission{Endpoint: PathCreateSubscriptionAuthorization}, nil
}

func (e *Engine) handleCreateSubscriptionAuthorization(ctx context.Context, sub models.Subscription, sender models.User, result gateway.Result) {
	resp := responseOf(result)
	success := resp.Success()
	reason := resp.Reason()
	status := resp.Status()

	logger := zap.L().With(
		zap.String("subscription_id", sub.SubscriptionId.String()),
		zap.String("principal_id", sender.PrincipalId),
		zap.String("status", status),
		zap.String("reason", reason))

	logger.Info("Create-subscription-authorization completed", zap.Bool("success", success), zap.Error(result.Err))

	outcome := SubscriptionAuthorizationOutcome{
		Response:     resp,
		Subscription: sub,
		Sender:       sender,
		Err:          result.Err,
	}

	if success {
		switch status {
		case StatusDuplicate:
			logger.Info("Subscription authorization already requested")
		case StatusDuplicateAlreadyApproved:
			logger.Info("Subscription authorization already approved by user")
		case StatusDuplicatePreviouslyDeclined:
			logger.Warn("User previously declined this subscription authorization")
		}
		logger.Info("Subscription authorization state",
			zap.String("pending", resp.String("pending")),
			zap.String("enabled", resp.String("enabled")))

		if id := resp.String("id"); id != "" && status != StatusDuplicateAlreadyApproved {
			e.SendSubscriptionAuthorization(ctx, sender.PrincipalId, id, sub)
		}
	} else {
		outcome.Failure = ClassifySubscriptionAuthorizationFailure(status, reason)
		switch outcome.Failure {
		case FailureCannotTransact:
			logger.Error("User has not granted transact permission")
		case FailureSubscriptionIdentity:
			logger.Error("Ledger could not identify the subscription")
		case FailureSubscriptionDisabled:
			logger.Error("Subscription is disabled on the ledger")
		case FailurePreviouslyDeclined:
			logger.Error("User previously declined this subscription authorization")
		default:
			logger.Error("Unable to create subscription authorization", zap.String("failure", string(outcome.Failure)))
		}
	}

	e.notifier.OnSubscriptionAuthorizationCreated(ctx, outcome)
}

// SendSubscriptionAuthorization sends the approval url for a subscription
// authorization to the user.
func (e *Engine) SendSubscriptionAuthorization(ctx context.Context, principalId, subscriptionAuthorizationId string, sub models.Subscription) {
	body := fmt.Sprintf(subscriptionAuthorizationBody, sub.ObjectName, sub.ObjectId)
	e.sendURL(ctx, principalId, subscriptionAuthorizationTitle, body, e.SubscriptionAuthorizationURL(subscriptionAuthorizationId))
}
