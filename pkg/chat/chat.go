// Package chat keeps a MessageStore in sync with the backend by polling the
// open thread and the conversation list, and sends messages optimistically.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aidarkhanov/nanoid/v2"

	"github.com/4xmen/memeboard/pkg/models"
	"github.com/4xmen/memeboard/pkg/poll"
	"github.com/4xmen/memeboard/pkg/state"
)

const clientIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var ErrNoConversation = errors.New("chat: no conversation open")

// API is the subset of the backend client the chat service calls.
type API interface {
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error)
	GetConversations(ctx context.Context, wallet string) ([]models.Conversation, error)
	GetMessages(ctx context.Context, a, b string) ([]models.Message, error)
	MarkRead(ctx context.Context, me, other string) (int, error)
}

type Service struct {
	api   API
	store *state.MessageStore

	mu      sync.Mutex
	me      string
	other   string
	convID  string
	thread  *poll.Poller[[]models.Message]
	inbox   *poll.Poller[[]models.Conversation]
	newID   func() (string, error)
	nowFunc func() time.Time
}

func New(api API, store *state.MessageStore) *Service {
	return &Service{
		api:     api,
		store:   store,
		newID:   func() (string, error) { return nanoid.GenerateString(clientIDAlphabet, 21) },
		nowFunc: time.Now,
	}
}

func (s *Service) Store() *state.MessageStore { return s.store }

// OpenConversation starts polling the "<me>_<other>" thread, replacing the
// current messages on every tick. Any previously open thread stops first.
// The thread is marked read once on open.
func (s *Service) OpenConversation(ctx context.Context, conversationID string, interval time.Duration) error {
	me, other, err := models.ParseConversationID(conversationID)
	if err != nil {
		return err
	}

	s.CloseConversation()

	thread := poll.New(interval, func(ctx context.Context) ([]models.Message, error) {
		return s.api.GetMessages(ctx, me, other)
	}, s.store.SetCurrentMessages).Named("messages " + conversationID)

	// The thread is cleared with the switch so a concurrent send either lands
	// before the wipe or targets the new conversation.
	s.mu.Lock()
	s.me, s.other, s.convID = me, other, conversationID
	s.thread = thread
	s.store.SetCurrentMessages(nil)
	s.mu.Unlock()

	thread.Start(ctx)

	if _, err := s.api.MarkRead(ctx, me, other); err != nil {
		log.Printf("chat: mark read failed conversation=%s error=%v", conversationID, err)
	} else {
		s.store.MarkAsRead(conversationID)
	}
	return nil
}

// CloseConversation stops the thread poller. It is safe to call when no
// thread is open.
func (s *Service) CloseConversation() {
	s.mu.Lock()
	thread := s.thread
	s.thread = nil
	s.me, s.other, s.convID = "", "", ""
	s.mu.Unlock()

	if thread != nil {
		thread.Stop()
	}
}

// WatchConversations polls me's conversation list.
func (s *Service) WatchConversations(ctx context.Context, me string, interval time.Duration) {
	inbox := poll.New(interval, func(ctx context.Context) ([]models.Conversation, error) {
		return s.api.GetConversations(ctx, me)
	}, s.store.SetConversations).Named("conversations " + me)

	s.mu.Lock()
	prev := s.inbox
	s.inbox = inbox
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	inbox.Start(ctx)
}

func (s *Service) StopWatching() {
	s.mu.Lock()
	inbox := s.inbox
	s.inbox = nil
	s.mu.Unlock()

	if inbox != nil {
		inbox.Stop()
	}
}

// Close stops every poller.
func (s *Service) Close() {
	s.CloseConversation()
	s.StopWatching()
}

func (s *Service) SendText(ctx context.Context, text string) (*models.Message, error) {
	return s.send(ctx, models.TextContent(text))
}

func (s *Service) SendImage(ctx context.Context, mediaURL string) (*models.Message, error) {
	return s.send(ctx, models.ImageContent(mediaURL))
}

func (s *Service) SendVideo(ctx context.Context, mediaURL string) (*models.Message, error) {
	return s.send(ctx, models.VideoContent(mediaURL))
}

func (s *Service) SendMeme(ctx context.Context, memeID int64) (*models.Message, error) {
	return s.send(ctx, models.MemeContent(memeID))
}

func (s *Service) SendPost(ctx context.Context, postID int64) (*models.Message, error) {
	return s.send(ctx, models.PostContent(postID))
}

// send appends a pending message, then swaps it for the server's copy or
// removes it when the request fails.
func (s *Service) send(ctx context.Context, content models.MessageContent) (*models.Message, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}

	clientID, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("chat: generate client id: %w", err)
	}

	// The pending entry is appended under the same lock that reads the
	// conversation, so it always belongs to the thread it is sent to.
	s.mu.Lock()
	me, other, convID := s.me, s.other, s.convID
	if convID == "" {
		s.mu.Unlock()
		return nil, ErrNoConversation
	}
	s.store.AddMessage(models.Message{
		SenderID:        me,
		ReceiverID:      other,
		Content:         content,
		Timestamp:       s.nowFunc(),
		IsRead:          true,
		ClientMessageID: clientID,
	})
	s.mu.Unlock()

	msg, err := s.api.SendMessage(ctx, models.SendMessageRequest{
		SenderID:        me,
		ReceiverID:      other,
		Content:         content,
		ClientMessageID: clientID,
	})
	if err != nil {
		s.store.RemoveMessage(clientID)
		log.Printf("chat: send failed conversation=%s client_id=%s error=%v", convID, clientID, err)
		return nil, err
	}

	s.mu.Lock()
	stillOpen := s.convID == convID
	s.mu.Unlock()
	if stillOpen {
		s.store.ReplaceMessage(clientID, *msg)
	}
	s.touchConversation(convID, other, msg)
	return msg, nil
}

func (s *Service) touchConversation(convID, other string, msg *models.Message) {
	last := *msg
	found := s.store.UpdateConversation(convID, func(c *models.Conversation) {
		c.LastMessage = &last
		c.UpdatedAt = msg.Timestamp
	})
	if !found {
		s.store.AddConversation(models.Conversation{
			ID:          convID,
			OtherUserID: other,
			LastMessage: &last,
			UpdatedAt:   msg.Timestamp,
		})
	}
}
