package domain

import (
	"slices"
	"strconv"
	"strings"
)

type ChatID int64

func ParseChatID(raw string) (ChatID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "chat", Reason: "must be a number"}
	}
	return ChatID(n), nil
}

type Chat struct {
	ID       ChatID
	Title    string
	Username string
}

// ChatSelection is the set of chats opted into scraping for one account.
// The zero value is an empty selection.
type ChatSelection struct {
	ids map[ChatID]struct{}
}

func NewChatSelection(ids ...ChatID) ChatSelection {
	s := ChatSelection{ids: make(map[ChatID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Toggle flips membership of id; toggling twice restores the original set.
func (s *ChatSelection) Toggle(id ChatID) bool {
	if s.ids == nil {
		s.ids = map[ChatID]struct{}{}
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s ChatSelection) Contains(id ChatID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s ChatSelection) Len() int {
	return len(s.ids)
}

// IDs returns the members in ascending order.
func (s ChatSelection) IDs() []ChatID {
	ids := make([]ChatID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s ChatSelection) Equal(other ChatSelection) bool {
	return slices.Equal(s.IDs(), other.IDs())
}

func (s ChatSelection) Clone() ChatSelection {
	return NewChatSelection(s.IDs()...)
}
