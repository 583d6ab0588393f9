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

const fallbackSaveChats = "Ошибка сохранения выбранных чатов"

type ChatSelectorState struct {
	Account   domain.AccountID
	Chats     []domain.Chat
	Selection domain.ChatSelection
	Notice    domain.Notice
	Busy      bool
}

// CanSave reports whether the selection may be persisted. An empty
// selection is never sent.
func (s ChatSelectorState) CanSave() bool {
	return s.Account != 0 && !s.Busy && s.Selection.Len() > 0
}

// ChatSelector edits the scraping selection of one connected account.
// Toggles are local until Save replaces the remote set wholesale.
type ChatSelector struct {
	accounts ports.AccountRegistry
	chats    ports.ChatStore
	logger   *slog.Logger

	mu    sync.Mutex
	state ChatSelectorState
}

func NewChatSelector(accounts ports.AccountRegistry, chats ports.ChatStore, logger *slog.Logger) *ChatSelector {
	if logger == nil {
		logger = discardLogger()
	}
	return &ChatSelector{accounts: accounts, chats: chats, logger: logger}
}

func (c *ChatSelector) State() ChatSelectorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneChatState(c.state)
}

// Load fetches the chats of a connected account and its persisted
// selection. A failure to read the selection leaves it empty.
func (c *ChatSelector) Load(ctx context.Context, id domain.AccountID) error {
	accounts, err := c.accounts.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	account, ok := domain.FindAccount(accounts, id)
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}
	if !account.IsConnected {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountNotConnected)
	}

	chats, err := c.chats.ListChats(ctx, id)
	if err != nil {
		return fmt.Errorf("list chats for account %s: %w", id, err)
	}

	selection := domain.NewChatSelection()
	selected, err := c.chats.GetSelectedChats(ctx, id)
	if err != nil {
		c.logger.Warn("failed to load chat selection", "account_id", id.String(), "error", err)
	} else {
		selection = domain.NewChatSelection(selected...)
	}

	c.mu.Lock()
	c.state = ChatSelectorState{Account: id, Chats: chats, Selection: selection}
	c.mu.Unlock()
	return nil
}

// Toggle flips one chat in or out of the local selection and reports the
// new membership.
func (c *ChatSelector) Toggle(id domain.ChatID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Account == 0 {
		return false, domain.ErrNoAccountSelected
	}
	if c.state.Chats != nil && !slices.ContainsFunc(c.state.Chats, func(ch domain.Chat) bool { return ch.ID == id }) {
		return false, fmt.Errorf("chat %d: %w", id, &domain.ValidationError{Field: "chat", Reason: "is not available for this account"})
	}
	return c.state.Selection.Toggle(id), nil
}

// Save sends the full selection, replacing whatever the remote holds.
func (c *ChatSelector) Save(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state.Account == 0:
		c.mu.Unlock()
		return domain.ErrNoAccountSelected
	case c.state.Busy:
		c.mu.Unlock()
		return domain.ErrRequestInFlight
	case c.state.Selection.Len() == 0:
		c.mu.Unlock()
		return domain.ErrEmptySelection
	}
	account := c.state.Account
	ids := c.state.Selection.IDs()
	c.state.Busy = true
	c.state.Notice = domain.Notice{}
	c.mu.Unlock()

	err := c.chats.SaveSelectedChats(ctx, account, ids)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Busy = false
	if err != nil {
		c.state.Notice = domain.Notice{Level: domain.NoticeError, Text: domain.RemoteDetail(err, fallbackSaveChats)}
		return fmt.Errorf("save selected chats for account %s: %w", account, err)
	}
	c.state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: fmt.Sprintf("Выбрано чатов: %d", len(ids))}
	return nil
}

func cloneChatState(s ChatSelectorState) ChatSelectorState {
	s.Chats = slices.Clone(s.Chats)
	s.Selection = s.Selection.Clone()
	return s
}
