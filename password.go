package auth

import (
	"fmt"
	"unicode"

	goerrors "github.com/goliatone/go-errors"
)

// CheckPasswordPolicy validates a cleartext password against the
// configured password rules. Violations are validation errors carrying a
// rule hint in metadata; the message stays generic enough to return to
// clients.
func CheckPasswordPolicy(password string, policy PasswordPolicies) error {
	if len(password) < policy.MinLen {
		return passwordPolicyError(fmt.Sprintf("password must be at least %d characters", policy.MinLen), "min_length")
	}

	if policy.MaxLen > 0 && len(password) > policy.MaxLen {
		return passwordPolicyError(fmt.Sprintf("password must be at most %d characters", policy.MaxLen), "max_length")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if policy.RequireUpper && !hasUpper {
		return passwordPolicyError("password must contain an uppercase letter", "require_upper")
	}
	if policy.RequireLower && !hasLower {
		return passwordPolicyError("password must contain a lowercase letter", "require_lower")
	}
	if policy.RequireDigit && !hasDigit {
		return passwordPolicyError("password must contain a digit", "require_digit")
	}
	if policy.RequireSpecial && !hasSpecial {
		return passwordPolicyError("password must contain a special character", "require_special")
	}

	return nil
}

func passwordPolicyError(message, rule string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(CodeValidationError).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"rule": rule})
}
