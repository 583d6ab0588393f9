package domain

import "strings"

type VerifyFailureKind string

const (
	VerifyFailurePasswordRequired VerifyFailureKind = "password_required"
	VerifyFailureCodeExpired      VerifyFailureKind = "code_expired"
	VerifyFailureCodeInvalid      VerifyFailureKind = "code_invalid"
	VerifyFailureOther            VerifyFailureKind = "other"
)

func (k VerifyFailureKind) Valid() bool {
	switch k {
	case VerifyFailurePasswordRequired, VerifyFailureCodeExpired, VerifyFailureCodeInvalid, VerifyFailureOther:
		return true
	default:
		return false
	}
}

// Substrings are matched case-sensitively, in priority order. Both English
// and Russian wordings are emitted by the existing remote.
var verifyFailurePatterns = []struct {
	kind     VerifyFailureKind
	patterns []string
}{
	{kind: VerifyFailurePasswordRequired, patterns: []string{"password", "2FA"}},
	{kind: VerifyFailureCodeExpired, patterns: []string{"expired", "истек", "PHONE_CODE_EXPIRED"}},
	{kind: VerifyFailureCodeInvalid, patterns: []string{"Invalid", "Неверный"}},
}

// ClassifyVerificationFailure maps free remote error text onto a failure
// kind. It is only used when the remote does not send a kind itself.
func ClassifyVerificationFailure(message string) VerifyFailureKind {
	for _, entry := range verifyFailurePatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(message, pattern) {
				return entry.kind
			}
		}
	}
	return VerifyFailureOther
}

// VerificationError is a classified failure of the verify-code operation.
type VerificationError struct {
	Kind    VerifyFailureKind
	Message string
}

func (e *VerificationError) Error() string {
	return "verify code: " + string(e.Kind) + ": " + e.Message
}
