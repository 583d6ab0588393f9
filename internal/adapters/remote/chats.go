package remote

import (
	"context"
	"net/http"

	"github.com/bnema/tgpanel/internal/domain"
)

const (
	chatsPath      = "/chats/"
	selectChatPath = "/chats/select"
)

type chatPayload struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

type chatsResponse struct {
	Chats []chatPayload `json:"chats"`
}

type selectedChatsResponse struct {
	ChatIDs []int64 `json:"chat_ids"`
}

type selectChatsRequest struct {
	AccountID int64   `json:"account_id"`
	ChatIDs   []int64 `json:"chat_ids"`
}

// ChatStore implements ports.ChatStore.
type ChatStore struct {
	Client Client
}

func (s ChatStore) ListChats(ctx context.Context, accountID domain.AccountID) ([]domain.Chat, error) {
	var payload chatsResponse
	err := s.Client.do(ctx, request{
		op:     "list chats",
		method: http.MethodGet,
		path:   chatsPath + accountID.String(),
	}, &payload)
	if err != nil {
		return nil, err
	}

	chats := make([]domain.Chat, 0, len(payload.Chats))
	for _, item := range payload.Chats {
		chats = append(chats, domain.Chat{ID: domain.ChatID(item.ID), Title: item.Title, Username: item.Username})
	}
	return chats, nil
}

func (s ChatStore) GetSelectedChats(ctx context.Context, accountID domain.AccountID) ([]domain.ChatID, error) {
	var payload selectedChatsResponse
	err := s.Client.do(ctx, request{
		op:     "get selected chats",
		method: http.MethodGet,
		path:   chatsPath + accountID.String() + "/selected",
	}, &payload)
	if err != nil {
		return nil, err
	}

	ids := make([]domain.ChatID, 0, len(payload.ChatIDs))
	for _, id := range payload.ChatIDs {
		ids = append(ids, domain.ChatID(id))
	}
	return ids, nil
}

func (s ChatStore) SaveSelectedChats(ctx context.Context, accountID domain.AccountID, chatIDs []domain.ChatID) error {
	ids := make([]int64, 0, len(chatIDs))
	for _, id := range chatIDs {
		ids = append(ids, int64(id))
	}

	return s.Client.do(ctx, request{
		op:     "save selected chats",
		method: http.MethodPost,
		path:   selectChatPath,
		body:   selectChatsRequest{AccountID: int64(accountID), ChatIDs: ids},
	}, nil)
}
