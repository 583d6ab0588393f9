package ports

import (
	"context"

	"github.com/bnema/tgpanel/internal/domain"
)

type ChatStore interface {
	ListChats(ctx context.Context, accountID domain.AccountID) ([]domain.Chat, error)
	GetSelectedChats(ctx context.Context, accountID domain.AccountID) ([]domain.ChatID, error)
	// SaveSelectedChats replaces the persisted selection wholesale.
	SaveSelectedChats(ctx context.Context, accountID domain.AccountID, chatIDs []domain.ChatID) error
}
