package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/internal/events"
	"github.com/4xmen/memeboard/internal/push"
	"github.com/4xmen/memeboard/pkg/models"
)

// MessageBroadcaster pushes message and read events to connected websocket clients
type MessageBroadcaster interface {
	BroadcastMessage(msg *models.Message)
	BroadcastRead(reader, other string, markedCount int)
	IsUserOnline(wallet string) bool
}

const messageColumns = `id, sender_id, receiver_id, content_type, text, meme_id, media_url,
	client_message_id, is_read, created_at`

type MessageHandler struct {
	db          *sql.DB
	broadcaster MessageBroadcaster
	notifier    *push.Notifier
	publisher   events.Publisher
}

func NewMessageHandler(conn *sql.DB, broadcaster MessageBroadcaster, notifier *push.Notifier, publisher events.Publisher) *MessageHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &MessageHandler{db: conn, broadcaster: broadcaster, notifier: notifier, publisher: publisher}
}

// SendMessage stores a message and fans it out to the receiver
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}
	if err := req.Content.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SenderID == req.ReceiverID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot message yourself"})
		return
	}

	var clientID *string
	if id := strings.TrimSpace(req.ClientMessageID); id != "" {
		clientID = &id
	}

	content := req.Content
	res, err := h.db.Exec(`
		INSERT INTO messages (sender_id, receiver_id, content_type, text, meme_id, media_url, client_message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.SenderID, req.ReceiverID, string(content.Type), content.Text, content.MemeID, content.MediaURL, clientID)
	if err != nil {
		log.Printf("messages: failed to store sender=%s receiver=%s error=%v", req.SenderID, req.ReceiverID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	id, _ := res.LastInsertId()

	msg, err := scanMessage(h.db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE id = ?", id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastMessage(msg)
	}

	if h.shouldPush(msg.ReceiverID) {
		senderName := msg.SenderID
		if sender, err := db.UserByWallet(h.db, msg.SenderID); err == nil {
			senderName = sender.DisplayName()
		}
		go h.notifier.SendNewMessageNotification(
			msg.ReceiverID, senderName, content.Preview(),
			models.ConversationID(msg.ReceiverID, msg.SenderID),
		)
	}

	publish(c.Request.Context(), h.publisher, events.Event{
		Type:       events.MessageSent,
		ActorID:    msg.SenderID,
		SubjectID:  models.ConversationID(msg.ReceiverID, msg.SenderID),
		Attributes: map[string]any{"content_type": string(content.Type)},
	})

	log.Printf("messages: sent id=%d sender=%s receiver=%s type=%s", msg.ID, msg.SenderID, msg.ReceiverID, content.Type)
	c.JSON(http.StatusOK, msg)
}

// shouldPush reports whether receiver needs a web push. A receiver with an
// open websocket already got the message from the hub.
func (h *MessageHandler) shouldPush(receiver string) bool {
	if h.notifier == nil {
		return false
	}
	return h.broadcaster == nil || !h.broadcaster.IsUserOnline(receiver)
}

// GetConversations groups a wallet's messages by partner
func (h *MessageHandler) GetConversations(c *gin.Context) {
	me := c.Param("wallet")

	rows, err := h.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE sender_id = ? OR receiver_id = ? ORDER BY id",
		me, me,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch conversations"})
		return
	}

	byPartner := make(map[string]*models.Conversation)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan message"})
			return
		}

		other := msg.ReceiverID
		if msg.SenderID != me {
			other = msg.SenderID
		}

		conv, ok := byPartner[other]
		if !ok {
			conv = &models.Conversation{
				ID:          models.ConversationID(me, other),
				OtherUserID: other,
			}
			byPartner[other] = conv
		}

		// Rows arrive by id so the last one seen is the newest
		conv.LastMessage = msg
		conv.UpdatedAt = msg.Timestamp
		if msg.ReceiverID == me && !msg.IsRead {
			conv.UnreadCount++
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch conversations"})
		return
	}
	rows.Close()

	conversations := make([]*models.Conversation, 0, len(byPartner))
	for other, conv := range byPartner {
		if user, err := db.UserByWallet(h.db, other); err == nil {
			name := user.DisplayName()
			conv.OtherUserName = &name
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("messages: failed to load partner wallet=%s error=%v", other, err)
		}
		conversations = append(conversations, conv)
	}

	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.LastMessage.ID > b.LastMessage.ID
	})

	c.JSON(http.StatusOK, conversations)
}

// GetMessages returns both directions of a thread, oldest first
func (h *MessageHandler) GetMessages(c *gin.Context) {
	me, other := c.Param("wallet"), c.Param("other")

	rows, err := h.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY id
	`, me, other, other, me)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch messages"})
		return
	}
	defer rows.Close()

	messages, err := collectMessages(rows)
	if err != nil {
		log.Printf("messages: failed to read thread wallet=%s other=%s error=%v", me, other, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// messageRows is the part of *sql.Rows that collectMessages reads.
type messageRows interface {
	db.Scanner
	Next() bool
	Err() error
}

// collectMessages scans every row, reporting iteration errors as well as scan errors.
func collectMessages(rows messageRows) ([]*models.Message, error) {
	messages := make([]*models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead marks messages from other to me as read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	me, other := c.Param("wallet"), c.Param("other")

	res, err := h.db.Exec(
		"UPDATE messages SET is_read = 1 WHERE receiver_id = ? AND sender_id = ? AND is_read = 0",
		me, other,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages as read"})
		return
	}
	n, _ := res.RowsAffected()

	if n > 0 && h.broadcaster != nil {
		h.broadcaster.BroadcastRead(me, other, int(n))
	}

	c.JSON(http.StatusOK, models.MarkReadResponse{MarkedCount: int(n)})
}

func scanMessage(s db.Scanner) (*models.Message, error) {
	msg := &models.Message{}
	var (
		contentType string
		clientID    sql.NullString
	)
	err := s.Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &contentType,
		&msg.Content.Text, &msg.Content.MemeID, &msg.Content.MediaURL,
		&clientID, &msg.IsRead, &msg.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	msg.Content.Type = models.ContentType(contentType)
	msg.ClientMessageID = clientID.String
	return msg, nil
}
