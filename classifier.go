package auth

import "net/http"

// Severity ranks a classified failure for logging and alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Classification is the boundary-facing view of a domain failure: the HTTP
// status, a sanitized user-facing message, a severity, and whether the
// failure signals a potential attack. Classification is a pure lookup over
// the error code; it never inspects payloads or causes side effects.
type Classification struct {
	Code     AuthErrorCode `json:"error"`
	Status   int           `json:"-"`
	Message  string        `json:"message"`
	Severity Severity      `json:"-"`
	Threat   bool          `json:"-"`
}

// classifications is the closed mapping table. Messages are deliberately
// generic: nothing here may leak internals or distinguish unknown users
// from wrong passwords.
var classifications = map[AuthErrorCode]Classification{
	CodeEmailAlreadyRegistered: {Status: http.StatusConflict, Message: "This email is already registered", Severity: SeverityLow},
	CodeInvalidCredentials:     {Status: http.StatusUnauthorized, Message: "Invalid email or password", Severity: SeverityMedium},
	CodeUserNotActive:          {Status: http.StatusForbidden, Message: "Account is not active", Severity: SeverityLow},
	CodeUserSuspended:          {Status: http.StatusForbidden, Message: "Account has been suspended", Severity: SeverityHigh, Threat: true},
	CodeSessionNotFound:        {Status: http.StatusNotFound, Message: "Session not found", Severity: SeverityLow},
	CodeSessionRevoked:         {Status: http.StatusUnauthorized, Message: "Session has been revoked", Severity: SeverityLow},
	CodeSessionExpired:         {Status: http.StatusUnauthorized, Message: "Session has expired", Severity: SeverityMedium},
	CodeRefreshTokenInvalid:    {Status: http.StatusUnauthorized, Message: "Invalid refresh token", Severity: SeverityLow},
	CodeRefreshTokenReused:     {Status: http.StatusUnauthorized, Message: "Token has already been used", Severity: SeverityCritical, Threat: true},
	CodeRefreshTokenExpired:    {Status: http.StatusUnauthorized, Message: "Refresh token has expired", Severity: SeverityMedium},
	CodeUnknownUser:            {Status: http.StatusNotFound, Message: "User not found", Severity: SeverityLow},
	CodePasswordMismatch:       {Status: http.StatusBadRequest, Message: "Current password is incorrect", Severity: SeverityLow},
	CodeSessionLimitReached:    {Status: http.StatusConflict, Message: "Maximum number of active sessions reached", Severity: SeverityLow},
	CodeAccountLocked:          {Status: http.StatusUnauthorized, Message: "Account is temporarily locked, try again later", Severity: SeverityHigh},
	CodeValidationError:        {Status: http.StatusBadRequest, Message: "Invalid request", Severity: SeverityLow},
	CodeInternalError:          {Status: http.StatusInternalServerError, Message: "An unexpected error occurred", Severity: SeverityMedium},
}

var unknownClassification = Classification{
	Code:     CodeInternalError,
	Status:   http.StatusInternalServerError,
	Message:  "An unexpected error occurred",
	Severity: SeverityMedium,
}

// Classify maps any error to its boundary classification. Errors outside
// the closed set collapse to a generic 500: callers must log the original
// error server-side before rendering the sanitized result.
func Classify(err error) Classification {
	code := CodeOf(err)
	if c, ok := classifications[code]; ok {
		c.Code = code
		return c
	}
	return unknownClassification
}

// SeverityOf returns the logging/alerting severity for err.
func SeverityOf(err error) Severity {
	return Classify(err).Severity
}

// IsSecurityThreat reports whether err should raise a security alert.
func IsSecurityThreat(err error) bool {
	return Classify(err).Threat
}

// HTTPStatus returns the transport status code for err.
func HTTPStatus(err error) int {
	return Classify(err).Status
}
