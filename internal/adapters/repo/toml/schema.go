package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version    int              `toml:"version"`
	Onboarding onboardingSchema `toml:"onboarding"`
	Import     *importSchema    `toml:"import,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
	if s.Onboarding.Phase == "" {
		s.Onboarding.Phase = "idle"
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported onboarding schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

// onboardingSchema never carries the two-factor password.
type onboardingSchema struct {
	Phase         string `toml:"phase"`
	AccountID     int64  `toml:"account_id,omitempty"`
	CodeHash      string `toml:"code_hash,omitempty"`
	Code          string `toml:"code,omitempty"`
	NoticeLevel   string `toml:"notice_level,omitempty"`
	NoticeText    string `toml:"notice_text,omitempty"`
	FailureReason string `toml:"failure_reason,omitempty"`
	UpdatedAt     string `toml:"updated_at,omitempty"`
}

// importSchema keeps what the status view shows about an import draft. API
// credentials and the session blob are supplied again on every attempt.
type importSchema struct {
	PhoneNumber string `toml:"phone_number"`
	Name        string `toml:"name,omitempty"`
	Filename    string `toml:"filename,omitempty"`
}
