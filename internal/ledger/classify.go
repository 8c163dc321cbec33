package ledger

// Failure classifies a ledger rejection for logging and for notifiers.
type Failure string

const (
	FailureNone                      Failure = ""
	FailureTransport                 Failure = "transport"
	FailureUnknownToken              Failure = "unknown-token"
	FailureSubscriptionAuthorization Failure = "subscription-authorization"
	FailureDatabase                  Failure = "database"
	FailureDuplicateSubscription     Failure = "different-subscription-exists"
	FailureCannotTransact            Failure = "cannot-transact"
	FailureSubscriptionIdentity      Failure = "subscription-identity"
	FailureSubscriptionDisabled      Failure = "subscription-disabled"
	FailurePreviouslyDeclined        Failure = "previously-declined"
	FailureUnclassified              Failure = "unclassified"
)

// Reasons and statuses reported by the ledger.
const (
	ReasonTransportFailure = "transport failure"

	ReasonUnknownToken1      = "unknown token1"
	ReasonUnknownToken2      = "unknown token2"
	ReasonUnknownOAuth2Token = "unknown OAuth2 token"

	ReasonUnknownSubscriptionAuthorization  = "unknown-subscription-authorization"
	ReasonSubscriptionAuthorizationPending  = "subscription-authorization-pending"
	ReasonSubscriptionAuthorizationDeclined = "subscription-authorization-declined"

	ReasonIntegrityError        = "Unexpected DB insert integrity error.  Please try again."
	ReasonUnknownDBError        = "Unknown DB Error"
	ReasonDifferentSubscription = "different subscription exists with this app-subscription-id"

	StatusDuplicate                   = "duplicate"
	StatusDuplicateAlreadyApproved    = "duplicate-and-already-approved-by-user"
	StatusDuplicatePreviouslyDeclined = "duplicate-and-previously-declined-by-user"
	StatusCannotTransact              = "cannot-transact"
	StatusSubscriptionNotFound        = "subscription-not-found"
	StatusMismatchedApplicationKey    = "mismatched-application-key"
	StatusMismatchedSubscriptionIds   = "mis-matched-subscription-ids"
	StatusSubscriptionDisabled        = "subscription-disabled"
)

// ClassifyBalanceFailure classifies a failed balance request.
func ClassifyBalanceFailure(reason string) Failure {
	switch reason {
	case ReasonTransportFailure:
		return FailureTransport
	case ReasonUnknownToken1, ReasonUnknownToken2:
		return FailureUnknownToken
	default:
		return FailureUnclassified
	}
}

// ClassifyTransferFailure classifies a failed transact or transact-u2u.
func ClassifyTransferFailure(reason string) Failure {
	switch reason {
	case ReasonTransportFailure:
		return FailureTransport
	case ReasonUnknownOAuth2Token:
		return FailureUnknownToken
	case ReasonUnknownSubscriptionAuthorization,
		ReasonSubscriptionAuthorizationPending,
		ReasonSubscriptionAuthorizationDeclined:
		return FailureSubscriptionAuthorization
	default:
		return FailureUnclassified
	}
}

// ClassifySubscriptionFailure classifies a failed create-subscription.
func ClassifySubscriptionFailure(reason string) Failure {
	switch reason {
	case ReasonTransportFailure:
		return FailureTransport
	case ReasonIntegrityError, ReasonUnknownDBError:
		return FailureDatabase
	case ReasonDifferentSubscription:
		return FailureDuplicateSubscription
	default:
		return FailureUnclassified
	}
}

// ClassifySubscriptionAuthorizationFailure classifies a failed
// create-subscription-authorization. The status decides first; the reason
// is only consulted for statuses the ledger does not name.
func ClassifySubscriptionAuthorizationFailure(status, reason string) Failure {
	switch status {
	case StatusCannotTransact:
		return FailureCannotTransact
	case StatusSubscriptionNotFound, StatusMismatchedApplicationKey, StatusMismatchedSubscriptionIds:
		return FailureSubscriptionIdentity
	case StatusSubscriptionDisabled:
		return FailureSubscriptionDisabled
	case StatusDuplicatePreviouslyDeclined:
		return FailurePreviouslyDeclined
	}

	switch reason {
	case ReasonTransportFailure:
		return FailureTransport
	case ReasonIntegrityError, ReasonUnknownDBError:
		return FailureDatabase
	default:
		return FailureUnclassified
	}
}
