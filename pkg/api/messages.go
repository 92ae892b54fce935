package api

import (
	"context"
	"net/http"

	"github.com/4xmen/memeboard/pkg/models"
)

func (c *Client) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	var out models.Message
	if err := c.doJSON(ctx, http.MethodPost, "/messages/send", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversations lists wallet's threads, most recently active first.
func (c *Client) GetConversations(ctx context.Context, wallet string) ([]models.Conversation, error) {
	var out []models.Conversation
	err := c.getJSON(ctx, pathf("/messages/conversations/%s", wallet), nil, &out)
	return out, err
}

// GetMessages returns both directions of the thread between a and b, oldest first.
func (c *Client) GetMessages(ctx context.Context, a, b string) ([]models.Message, error) {
	var out []models.Message
	err := c.getJSON(ctx, pathf("/messages/%s/%s", a, b), nil, &out)
	return out, err
}

// MarkRead marks the messages other sent to me as read.
func (c *Client) MarkRead(ctx context.Context, me, other string) (int, error) {
	var out models.MarkReadResponse
	if err := c.doJSON(ctx, http.MethodPut, pathf("/messages/read/%s/%s", me, other), nil, &out); err != nil {
		return 0, err
	}
	return out.MarkedCount, nil
}
