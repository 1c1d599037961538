package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeEmptyToken       = "EMPTY_BEARER_TOKEN"
	textCodeStoreUnavailable = "CREDENTIAL_STORE_UNAVAILABLE"
	textCodeBadTimeout       = "INVALID_TIMEOUT_CONFIG"
	textCodeNotAuthorized    = "DISTRIBUTOR_NOT_AUTHORIZED"
)

// ErrEmptyToken is returned when Login or Authorize is handed a blank bearer token.
var ErrEmptyToken = goerrors.New("bearer token is required", goerrors.CategoryValidation).
	WithTextCode(textCodeEmptyToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTimeout is returned when the inactivity timeout is missing or not positive.
// The monitor refuses to arm rather than ticking with a broken policy.
var ErrInvalidTimeout = goerrors.New("inactivity timeout must be a positive duration", goerrors.CategoryValidation).
	WithTextCode(textCodeBadTimeout).
	WithCode(goerrors.CodeBadRequest)

// wrapStorageErr tags a credential store failure as transient. Watchdog and
// monitor skip the current cycle on these; they never force a logout from a
// read failure alone.
func wrapStorageErr(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(textCodeStoreUnavailable).
		WithCode(goerrors.CodeInternal)
}

// IsStorageError reports whether err came from the credential store rather
// than from session logic.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCodeStoreUnavailable
	}
	return false
}

// IsAuthRejection reports whether err represents a 401-class authorization
// rejection from a collaborator. Dependents translate these into a forced
// logout (primary session) or revocation (distributor sub-session).
func IsAuthRejection(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Category == goerrors.CategoryAuth || richErr.Category == goerrors.CategoryAuthz {
			return true
		}
		return richErr.Code == goerrors.CodeUnauthorized
	}
	return false
}

// NewAuthRejection builds a 401-class error suitable for IsAuthRejection.
// Collaborator adapters use it to normalize transport-specific rejections.
func NewAuthRejection(msg string) error {
	return goerrors.New(msg, goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized)
}
