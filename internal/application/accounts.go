package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/bnema/tgpanel/internal/ports"
)

// AccountDirectory caches the registered account list. Onboarding
// callbacks call Invalidate so the next read goes to the remote.
type AccountDirectory struct {
	registry ports.AccountRegistry
	logger   *slog.Logger

	mu       sync.Mutex
	accounts []domain.Account
	loaded   bool
}

func NewAccountDirectory(registry ports.AccountRegistry, logger *slog.Logger) *AccountDirectory {
	if logger == nil {
		logger = discardLogger()
	}
	return &AccountDirectory{registry: registry, logger: logger}
}

func (d *AccountDirectory) List(ctx context.Context) ([]domain.Account, error) {
	d.mu.Lock()
	if d.loaded {
		accounts := slices.Clone(d.accounts)
		d.mu.Unlock()
		return accounts, nil
	}
	d.mu.Unlock()

	return d.Refresh(ctx)
}

func (d *AccountDirectory) Refresh(ctx context.Context) ([]domain.Account, error) {
	accounts, err := d.registry.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	d.mu.Lock()
	d.accounts = accounts
	d.loaded = true
	d.mu.Unlock()

	return slices.Clone(accounts), nil
}

func (d *AccountDirectory) Invalidate() {
	d.mu.Lock()
	d.loaded = false
	d.mu.Unlock()
}

func (d *AccountDirectory) Connected(ctx context.Context) ([]domain.Account, error) {
	accounts, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.ConnectedAccounts(accounts), nil
}

func (d *AccountDirectory) Delete(ctx context.Context, id domain.AccountID) error {
	if err := d.registry.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	d.logger.Info("account deleted", "account_id", id.String())
	d.Invalidate()
	return nil
}

// CheckConnection asks the remote to re-probe the session and updates the
// cached flag.
func (d *AccountDirectory) CheckConnection(ctx context.Context, id domain.AccountID) (bool, error) {
	connected, err := d.registry.CheckConnection(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check connection for account %s: %w", id, err)
	}

	d.mu.Lock()
	for i := range d.accounts {
		if d.accounts[i].ID == id {
			d.accounts[i].IsConnected = connected
		}
	}
	d.mu.Unlock()

	return connected, nil
}

// Callbacks wires onboarding notifications to cache invalidation.
func (d *AccountDirectory) Callbacks() OnboardingCallbacks {
	return OnboardingCallbacks{
		AccountAdded:    d.Invalidate,
		AccountVerified: d.Invalidate,
	}
}
