package service

import "errors"

// Expected business outcomes, returned as values so callers can branch with
// errors.Is. The messages double as stable error codes and carry no row
// content.
var (
	// ErrRatePermissionDenied means the actor may not rate in this area.
	ErrRatePermissionDenied = errors.New("ratepermissiondenied")

	// ErrRatingInvalid means the component's validation rejected the
	// submission, or no validator is registered for the component.
	ErrRatingInvalid = errors.New("ratinginvalid")

	// ErrNoViewRate means the actor may not list an item's ratings.
	ErrNoViewRate = errors.New("noviewrate")

	// ErrContextRequired means a purge was attempted without a context id.
	ErrContextRequired = errors.New("context id is required")
)
