package state

import (
	"slices"
	"sync"

	"github.com/4xmen/memeboard/pkg/models"
)

type MessageSnapshot struct {
	Conversations   []models.Conversation
	CurrentMessages []models.Message
	IsLoading       bool
	Error           string
	Version         uint64
}

type MessageStore struct {
	mu              sync.RWMutex
	conversations   []models.Conversation
	currentMessages []models.Message
	isLoading       bool
	err             string
	version         uint64
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Snapshot() MessageSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MessageSnapshot{
		Conversations:   slices.Clone(s.conversations),
		CurrentMessages: slices.Clone(s.currentMessages),
		IsLoading:       s.isLoading,
		Error:           s.err,
		Version:         s.version,
	}
}

func (s *MessageStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *MessageStore) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	s.mu.Unlock()
}

func (s *MessageStore) SetConversations(convs []models.Conversation) {
	s.mutate(func() { s.conversations = slices.Clone(convs) })
}

// AddConversation puts conv at the top of the list.
func (s *MessageStore) AddConversation(conv models.Conversation) {
	s.mutate(func() {
		s.conversations = append([]models.Conversation{conv}, s.conversations...)
	})
}

func (s *MessageStore) UpdateConversation(id string, fn func(*models.Conversation)) bool {
	found := false
	s.mutate(func() {
		for i := range s.conversations {
			if s.conversations[i].ID == id {
				fn(&s.conversations[i])
				found = true
				return
			}
		}
	})
	return found
}

func (s *MessageStore) MarkAsRead(conversationID string) {
	s.UpdateConversation(conversationID, func(c *models.Conversation) { c.UnreadCount = 0 })
}

// SetCurrentMessages replaces the open thread wholesale.
func (s *MessageStore) SetCurrentMessages(msgs []models.Message) {
	s.mutate(func() { s.currentMessages = slices.Clone(msgs) })
}

func (s *MessageStore) AddMessage(msg models.Message) {
	s.mutate(func() { s.currentMessages = append(s.currentMessages, msg) })
}

// ReplaceMessage swaps the pending message with clientID for msg. When a poll
// already replaced the thread, msg is appended unless it is already present.
func (s *MessageStore) ReplaceMessage(clientID string, msg models.Message) {
	s.mutate(func() {
		for i := range s.currentMessages {
			if s.currentMessages[i].ClientMessageID == clientID && s.currentMessages[i].ID == 0 {
				s.currentMessages[i] = msg
				return
			}
		}
		for _, m := range s.currentMessages {
			if m.ID != 0 && m.ID == msg.ID {
				return
			}
		}
		s.currentMessages = append(s.currentMessages, msg)
	})
}

// RemoveMessage drops the pending message with clientID.
func (s *MessageStore) RemoveMessage(clientID string) {
	s.mutate(func() {
		s.currentMessages = slices.DeleteFunc(s.currentMessages, func(m models.Message) bool {
			return m.ID == 0 && m.ClientMessageID == clientID
		})
	})
}

func (s *MessageStore) SetLoading(v bool) {
	s.mutate(func() { s.isLoading = v })
}

func (s *MessageStore) SetError(msg string) {
	s.mutate(func() { s.err = msg })
}

func (s *MessageStore) Reset() {
	s.mutate(func() {
		s.conversations = nil
		s.currentMessages = nil
		s.isLoading = false
		s.err = ""
	})
}
