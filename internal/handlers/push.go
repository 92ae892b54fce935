package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/memeboard/internal/push"
)

type PushHandler struct {
	db       *sql.DB
	notifier *push.Notifier
}

func NewPushHandler(conn *sql.DB, notifier *push.Notifier) *PushHandler {
	return &PushHandler{db: conn, notifier: notifier}
}

// VAPIDKey returns the public key browsers need to subscribe
func (h *PushHandler) VAPIDKey(c *gin.Context) {
	key := h.notifier.VAPIDPublicKey()
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": key})
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	var sub push.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}

	if err := push.Subscribe(h.db, c.GetString("wallet_address"), sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save subscription"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "subscribed"})
}

func (h *PushHandler) Unsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}

	revoked, err := push.Unsubscribe(h.db, c.GetString("wallet_address"), req.Endpoint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove subscription"})
		return
	}
	if !revoked {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed"})
}
