package models

import (
	"errors"
	"strings"
	"time"
)

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
	ContentMeme  ContentType = "meme"
	ContentPost  ContentType = "post"
)

// MessageContent is a tagged union keyed by Type.
type MessageContent struct {
	Type     ContentType `json:"type"`
	Text     *string     `json:"text,omitempty"`
	MemeID   *int64      `json:"meme_id,omitempty"`
	MediaURL *string     `json:"media_url,omitempty"`
}

func TextContent(text string) MessageContent {
	return MessageContent{Type: ContentText, Text: &text}
}

func ImageContent(url string) MessageContent {
	return MessageContent{Type: ContentImage, MediaURL: &url}
}

func VideoContent(url string) MessageContent {
	return MessageContent{Type: ContentVideo, MediaURL: &url}
}

func MemeContent(memeID int64) MessageContent {
	return MessageContent{Type: ContentMeme, MemeID: &memeID}
}

func PostContent(postID int64) MessageContent {
	return MessageContent{Type: ContentPost, MemeID: &postID}
}

// Validate checks that the fields required by Type are present.
func (c MessageContent) Validate() error {
	switch c.Type {
	case ContentText:
		if c.Text == nil || strings.TrimSpace(*c.Text) == "" {
			return invalidContent("text message needs text")
		}
	case ContentImage, ContentVideo:
		if c.MediaURL == nil || strings.TrimSpace(*c.MediaURL) == "" {
			return invalidContent("%s message needs media_url", c.Type)
		}
	case ContentMeme, ContentPost:
		if c.MemeID == nil || *c.MemeID <= 0 {
			return invalidContent("%s message needs meme_id", c.Type)
		}
	default:
		return invalidContent("unknown type %q", c.Type)
	}
	return nil
}

// Preview is a short human readable summary used in notifications and lists.
func (c MessageContent) Preview() string {
	switch c.Type {
	case ContentText:
		if c.Text != nil {
			return *c.Text
		}
	case ContentImage:
		return "sent an image"
	case ContentVideo:
		return "sent a video"
	case ContentMeme:
		return "shared a meme"
	case ContentPost:
		return "shared a post"
	}
	return ""
}

type Message struct {
	ID              int64          `json:"id"`
	SenderID        string         `json:"sender_id"`
	ReceiverID      string         `json:"receiver_id"`
	Content         MessageContent `json:"content"`
	Timestamp       time.Time      `json:"timestamp"`
	IsRead          bool           `json:"is_read"`
	ClientMessageID string         `json:"client_message_id,omitempty"`
}

type SendMessageRequest struct {
	SenderID        string         `json:"sender_id" binding:"required"`
	ReceiverID      string         `json:"receiver_id" binding:"required"`
	Content         MessageContent `json:"content"`
	ClientMessageID string         `json:"client_message_id,omitempty"`
}

type Conversation struct {
	ID            string    `json:"id"`
	OtherUserID   string    `json:"other_user_id"`
	OtherUserName *string   `json:"other_user_name,omitempty"`
	LastMessage   *Message  `json:"last_message,omitempty"`
	UnreadCount   int       `json:"unread_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var ErrInvalidConversationID = errors.New("invalid conversation id")

// ConversationID builds the "<me>_<other>" identifier used by the conversation list.
func ConversationID(me, other string) string {
	return me + "_" + other
}

// ParseConversationID splits an identifier produced by ConversationID.
func ParseConversationID(id string) (me, other string, err error) {
	me, other, ok := strings.Cut(id, "_")
	if !ok || me == "" || other == "" {
		return "", "", ErrInvalidConversationID
	}
	return me, other, nil
}
