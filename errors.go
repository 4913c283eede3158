package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

// AuthErrorCode identifies a domain failure. The set is closed: the
// classifier maps every code, and anything outside it collapses to a
// generic internal error at the boundary.
type AuthErrorCode = string

const (
	CodeEmailAlreadyRegistered AuthErrorCode = "EMAIL_ALREADY_REGISTERED"
	CodeInvalidCredentials     AuthErrorCode = "INVALID_CREDENTIALS"
	CodeUserNotActive          AuthErrorCode = "USER_NOT_ACTIVE"
	CodeUserSuspended          AuthErrorCode = "USER_SUSPENDED"
	CodeSessionNotFound        AuthErrorCode = "SESSION_NOT_FOUND"
	CodeSessionRevoked         AuthErrorCode = "SESSION_REVOKED"
	CodeSessionExpired         AuthErrorCode = "SESSION_EXPIRED"
	CodeRefreshTokenInvalid    AuthErrorCode = "REFRESH_TOKEN_INVALID"
	CodeRefreshTokenReused     AuthErrorCode = "REFRESH_TOKEN_REUSED"
	CodeRefreshTokenExpired    AuthErrorCode = "REFRESH_TOKEN_EXPIRED"
	CodeUnknownUser            AuthErrorCode = "UNKNOWN_USER"
	CodePasswordMismatch       AuthErrorCode = "PASSWORD_MISMATCH"
	CodeSessionLimitReached    AuthErrorCode = "SESSION_LIMIT_REACHED"
	CodeAccountLocked          AuthErrorCode = "ACCOUNT_LOCKED"
	CodeValidationError        AuthErrorCode = "VALIDATION_ERROR"
	CodeInternalError          AuthErrorCode = "INTERNAL_ERROR"
)

const textCodeInvalidPolicy = "INVALID_AUTH_POLICY"

// ErrEmailAlreadyRegistered is returned when registering a taken email.
var ErrEmailAlreadyRegistered = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(CodeEmailAlreadyRegistered).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials covers both unknown users and wrong passwords so
// callers cannot enumerate accounts.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(CodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotActive is returned for pending/disabled/archived accounts.
var ErrUserNotActive = goerrors.New("account is not active", goerrors.CategoryAuthz).
	WithTextCode(CodeUserNotActive).
	WithCode(goerrors.CodeForbidden)

// ErrUserSuspended is returned when a suspended account attempts access.
var ErrUserSuspended = goerrors.New("account has been suspended", goerrors.CategoryAuthz).
	WithTextCode(CodeUserSuspended).
	WithCode(goerrors.CodeForbidden)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryNotFound).
	WithTextCode(CodeSessionNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSessionRevoked is returned when using a revoked session.
var ErrSessionRevoked = goerrors.New("session has been revoked", goerrors.CategoryAuth).
	WithTextCode(CodeSessionRevoked).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned when a session aged or idled out.
var ErrSessionExpired = goerrors.New("session has expired", goerrors.CategoryAuth).
	WithTextCode(CodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenInvalid is returned for tokens this issuer never minted
// or that belong to a revoked chain.
var ErrRefreshTokenInvalid = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode(CodeRefreshTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenReused is returned when an already-consumed refresh token
// is redeemed again. Treated as token theft: the whole chain is revoked.
var ErrRefreshTokenReused = goerrors.New("refresh token has already been used", goerrors.CategoryAuth).
	WithTextCode(CodeRefreshTokenReused).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenExpired is returned past refreshTokenExpiresAt.
var ErrRefreshTokenExpired = goerrors.New("refresh token has expired", goerrors.CategoryAuth).
	WithTextCode(CodeRefreshTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownUser is returned by admin-facing lookups for missing users.
// Authenticate never surfaces it; see ErrInvalidCredentials.
var ErrUnknownUser = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(CodeUnknownUser).
	WithCode(goerrors.CodeNotFound)

// ErrPasswordMismatch is returned when a current-password check fails.
var ErrPasswordMismatch = goerrors.New("current password is incorrect", goerrors.CategoryBadInput).
	WithTextCode(CodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionLimitReached is the capacity failure under reject_new.
var ErrSessionLimitReached = goerrors.New("maximum number of sessions reached", goerrors.CategoryConflict).
	WithTextCode(CodeSessionLimitReached).
	WithCode(goerrors.CodeConflict)

// ErrAccountLocked is returned while the failed-login lockout window holds.
var ErrAccountLocked = goerrors.New("account is temporarily locked", goerrors.CategoryAuth).
	WithTextCode(CodeAccountLocked).
	WithCode(goerrors.CodeUnauthorized)

// CodeOf extracts the AuthErrorCode carried by err, or empty when err is
// not one of this package's domain errors.
func CodeOf(err error) AuthErrorCode {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}

	return richErr.TextCode
}

// IsAuthError reports whether err carries one of the closed domain codes.
func IsAuthError(err error) bool {
	_, ok := classifications[CodeOf(err)]
	return ok
}

func validationError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request").
		WithTextCode(CodeValidationError).
		WithCode(goerrors.CodeBadRequest)
}
