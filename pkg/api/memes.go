package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/4xmen/memeboard/pkg/models"
)

// MemeQuery selects a page of the main feed. A zero Limit asks for every meme.
type MemeQuery struct {
	Page   int
	Limit  int
	Viewer string
}

func (q MemeQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
		if q.Page > 0 {
			v.Set("page", strconv.Itoa(q.Page))
		}
	}
	if q.Viewer != "" {
		v.Set("viewer", q.Viewer)
	}
	return v
}

// GetMemes returns the feed ordered by popularity.
func (c *Client) GetMemes(ctx context.Context, q MemeQuery) ([]models.Meme, error) {
	var out []models.Meme
	err := c.getJSON(ctx, "/memes", q.values(), &out)
	return out, err
}

func (c *Client) GetMeme(ctx context.Context, id int64, viewer string) (*models.Meme, error) {
	var out models.Meme
	if err := c.getJSON(ctx, pathf("/memes/%d", id), viewerQuery(viewer), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFollowingFeed returns posts by the users wallet follows, newest first.
func (c *Client) GetFollowingFeed(ctx context.Context, wallet string) ([]models.Meme, error) {
	var out []models.Meme
	err := c.getJSON(ctx, pathf("/feed/%s", wallet), nil, &out)
	return out, err
}

// LikeMeme records a like and returns the updated meme. userID may be empty
// for an anonymous like.
func (c *Client) LikeMeme(ctx context.Context, id int64, userID string) (*models.Meme, error) {
	return c.like(ctx, http.MethodPost, id, userID)
}

func (c *Client) UnlikeMeme(ctx context.Context, id int64, userID string) (*models.Meme, error) {
	return c.like(ctx, http.MethodDelete, id, userID)
}

func (c *Client) like(ctx context.Context, method string, id int64, userID string) (*models.Meme, error) {
	var body any
	if userID != "" {
		body = models.LikeRequest{UserID: userID}
	}
	var out models.Meme
	if err := c.doJSON(ctx, method, pathf("/memes/%d/like", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteMeme(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, pathf("/memes/%d", id), nil, nil)
}

// Upload is the multipart form posted to /memes/upload. Either Image (with
// ImageName) or ImageURL must be set.
type Upload struct {
	Caption    string
	Tags       string
	EVMAddress string
	MediaType  string
	ImageURL   string
	ImageName  string
	Image      io.Reader
}

func (c *Client) UploadMeme(ctx context.Context, u Upload) (*models.Meme, error) {
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	fields := []struct{ name, value string }{
		{"caption", u.Caption},
		{"tags", u.Tags},
		{"evm_address", u.EVMAddress},
		{"media_type", u.MediaType},
		{"image_url", u.ImageURL},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("api: write field %s: %w", f.name, err)
		}
	}

	if u.Image != nil {
		name := u.ImageName
		if name == "" {
			name = "upload.jpg"
		}
		part, err := w.CreateFormFile("image", name)
		if err != nil {
			return nil, fmt.Errorf("api: create image part: %w", err)
		}
		if _, err := io.Copy(part, u.Image); err != nil {
			return nil, fmt.Errorf("api: copy image: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("api: close multipart: %w", err)
	}

	var out models.Meme
	if err := c.send(ctx, http.MethodPost, "/memes/upload", body, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetComments(ctx context.Context, memeID int64) ([]models.Comment, error) {
	var out []models.Comment
	err := c.getJSON(ctx, pathf("/memes/%d/comments", memeID), nil, &out)
	return out, err
}

func (c *Client) AddComment(ctx context.Context, memeID int64, userID, text string) (*models.Comment, error) {
	var out models.Comment
	req := models.AddCommentRequest{UserID: userID, Text: text}
	if err := c.doJSON(ctx, http.MethodPost, pathf("/memes/%d/comments", memeID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteComment(ctx context.Context, memeID, commentID int64) error {
	return c.doJSON(ctx, http.MethodDelete, pathf("/memes/%d/comments/%d", memeID, commentID), nil, nil)
}
