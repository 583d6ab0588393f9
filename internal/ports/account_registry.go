package ports

import (
	"context"

	"github.com/bnema/tgpanel/internal/domain"
)

// AccountRegistry is the remote store of registered Telegram accounts.
// VerifyCode failures are reported as *domain.VerificationError.
type AccountRegistry interface {
	AddAccount(ctx context.Context, creds domain.Credentials) (domain.AddAccountResult, error)
	VerifyCode(ctx context.Context, pending domain.PendingVerification) error
	ImportSession(ctx context.Context, req domain.SessionImportRequest) (string, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	DeleteAccount(ctx context.Context, id domain.AccountID) error
	CheckConnection(ctx context.Context, id domain.AccountID) (bool, error)
}
