// Package models holds the JSON shapes exchanged between the memeboard
// backend and its clients.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type User struct {
	ID             int64     `json:"id"`
	WalletAddress  string    `json:"wallet_address"`
	Username       *string   `json:"username,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Name           *string   `json:"name,omitempty"`
	ProfilePicture *string   `json:"profile_picture,omitempty"`
	Bio            *string   `json:"bio,omitempty"`
	OAuthProvider  string    `json:"oauth_provider"` // google, apple, github, email, demo
	OAuthID        string    `json:"oauth_id"`
	CreatedAt      time.Time `json:"created_at"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	PostsCount     int       `json:"posts_count"`
}

// DisplayName returns the best human readable name for the user.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.Name != nil && *u.Name != "":
		return *u.Name
	case u.Username != nil && *u.Username != "":
		return *u.Username
	default:
		return u.WalletAddress
	}
}

// Meme is a post in the feed.
type Meme struct {
	ID           int64     `json:"id"`
	Caption      string    `json:"caption"`
	Tags         string    `json:"tags"`
	Image        string    `json:"image"`
	Video        *string   `json:"video,omitempty"`
	MediaType    string    `json:"media_type"`
	EVMAddress   *string   `json:"evm_address,omitempty"`
	User         *User     `json:"user,omitempty"`
	Likes        int       `json:"likes"`
	CommentCount int       `json:"comment_count"`
	IsLiked      bool      `json:"is_liked"`
	CreatedAt    time.Time `json:"created_at"`
}

// Score is the popularity used to order the main feed.
func (m Meme) Score() int {
	return m.Likes + m.CommentCount
}

type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    string    `json:"user_id"`
	User      *User     `json:"user,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Likes     int       `json:"likes"`
	IsLiked   bool      `json:"is_liked"`
}

type Follow struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SplitTags turns the comma separated tag string into trimmed, non-empty tags.
func SplitTags(tags string) []string {
	var out []string
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// JoinTags is the inverse of SplitTags.
func JoinTags(tags []string) string {
	clean := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			clean = append(clean, tag)
		}
	}
	return strings.Join(clean, ", ")
}

// Request and response bodies

type RegisterUserRequest struct {
	WalletAddress  string  `json:"wallet_address" binding:"omitempty,evmaddr"`
	Email          *string `json:"email,omitempty"`
	Name           *string `json:"name,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	OAuthProvider  string  `json:"oauth_provider" binding:"required"`
	OAuthID        string  `json:"oauth_id" binding:"required"`
}

type UpdateProfileRequest struct {
	Name           *string `json:"name,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

type AuthRegisterRequest struct {
	Username      string `json:"username" binding:"required,min=3,max=50"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
	DisplayName   string `json:"display_name,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty" binding:"omitempty,evmaddr"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthProfileRequest struct {
	DisplayName       *string `json:"display_name,omitempty"`
	Bio               *string `json:"bio,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
}

type LikeRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type AddCommentRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

type FollowRequest struct {
	FollowerID  string `json:"follower_id" binding:"required"`
	FollowingID string `json:"following_id" binding:"required"`
}

type FollowStatus struct {
	IsFollowing bool `json:"is_following"`
}

type MarkReadResponse struct {
	MarkedCount int `json:"marked_count"`
}

// ErrInvalidContent is returned by MessageContent.Validate.
var ErrInvalidContent = errors.New("invalid message content")

func invalidContent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidContent, fmt.Sprintf(format, args...))
}
