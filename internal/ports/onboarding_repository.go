package ports

import (
	"context"

	"github.com/bnema/tgpanel/internal/domain"
)

// OnboardingRepository keeps the onboarding snapshot between CLI
// invocations. Load of a missing snapshot returns the idle state.
type OnboardingRepository interface {
	Load(ctx context.Context) (domain.OnboardingState, error)
	Save(ctx context.Context, state domain.OnboardingState) error
	Clear(ctx context.Context) error
}
