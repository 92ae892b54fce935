package api

import (
	"context"
	"net/http"

	"github.com/4xmen/memeboard/pkg/models"
)

func (c *Client) Follow(ctx context.Context, follower, following string) error {
	req := models.FollowRequest{FollowerID: follower, FollowingID: following}
	return c.doJSON(ctx, http.MethodPost, "/follow", req, nil)
}

func (c *Client) Unfollow(ctx context.Context, follower, following string) error {
	req := models.FollowRequest{FollowerID: follower, FollowingID: following}
	return c.doJSON(ctx, http.MethodDelete, "/follow", req, nil)
}

func (c *Client) IsFollowing(ctx context.Context, follower, following string) (bool, error) {
	var out models.FollowStatus
	if err := c.getJSON(ctx, pathf("/follow/check/%s/%s", follower, following), nil, &out); err != nil {
		return false, err
	}
	return out.IsFollowing, nil
}

func (c *Client) Followers(ctx context.Context, wallet string) ([]models.User, error) {
	var out []models.User
	err := c.getJSON(ctx, pathf("/users/%s/followers", wallet), nil, &out)
	return out, err
}

func (c *Client) Following(ctx context.Context, wallet string) ([]models.User, error) {
	var out []models.User
	err := c.getJSON(ctx, pathf("/users/%s/following", wallet), nil, &out)
	return out, err
}
