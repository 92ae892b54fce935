package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/4xmen/memeboard/pkg/models"
)

// Register creates an email account and keeps the returned token.
func (c *Client) Register(ctx context.Context, req models.AuthRegisterRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Login exchanges credentials for a session and keeps the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout ends the server session. The local token is dropped even when the
// request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.getJSON(ctx, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAuthProfile(ctx context.Context, req models.AuthProfileRequest) (*models.User, error) {
	var out models.User
	if err := c.doJSON(ctx, http.MethodPut, "/auth/profile", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterUser is the oauth registration. Registering the same provider id
// twice returns the existing user.
func (c *Client) RegisterUser(ctx context.Context, req models.RegisterUserRequest) (*models.User, error) {
	var out models.User
	if err := c.doJSON(ctx, http.MethodPost, "/users/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, wallet string) (*models.User, error) {
	var out models.User
	if err := c.getJSON(ctx, pathf("/users/%s", wallet), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, wallet string, req models.UpdateProfileRequest) (*models.User, error) {
	var out models.User
	if err := c.doJSON(ctx, http.MethodPut, pathf("/users/%s", wallet), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var out []models.User
	err := c.getJSON(ctx, "/users/search", url.Values{"query": {query}}, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := c.getJSON(ctx, "/users", nil, &out)
	return out, err
}

// GetUserPosts lists the memes created by wallet. viewer may be empty.
func (c *Client) GetUserPosts(ctx context.Context, wallet, viewer string) ([]models.Meme, error) {
	var out []models.Meme
	err := c.getJSON(ctx, pathf("/users/%s/posts", wallet), viewerQuery(viewer), &out)
	return out, err
}

func viewerQuery(viewer string) url.Values {
	if viewer == "" {
		return nil
	}
	return url.Values{"viewer": {viewer}}
}
