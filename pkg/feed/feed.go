// Package feed drives the meme feed: paging, the following feed, optimistic
// likes and the upload form.
package feed

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/4xmen/memeboard/pkg/api"
	"github.com/4xmen/memeboard/pkg/models"
	"github.com/4xmen/memeboard/pkg/state"
)

const DefaultPageSize = 20

var ErrNothingToUpload = errors.New("feed: an image or image URL is required")

// API is the subset of the backend client the feed calls.
type API interface {
	GetMemes(ctx context.Context, q api.MemeQuery) ([]models.Meme, error)
	GetFollowingFeed(ctx context.Context, wallet string) ([]models.Meme, error)
	LikeMeme(ctx context.Context, id int64, userID string) (*models.Meme, error)
	UnlikeMeme(ctx context.Context, id int64, userID string) (*models.Meme, error)
	UploadMeme(ctx context.Context, u api.Upload) (*models.Meme, error)
}

type Controller struct {
	api      API
	store    *state.FeedStore
	pageSize int
	viewer   string
}

func New(client API, store *state.FeedStore) *Controller {
	return &Controller{api: client, store: store, pageSize: DefaultPageSize}
}

func (c *Controller) Store() *state.FeedStore { return c.store }

// SetViewer sets the wallet used to fill is_liked on fetched posts.
func (c *Controller) SetViewer(wallet string) { c.viewer = wallet }

func (c *Controller) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// Refresh reloads the first page.
func (c *Controller) Refresh(ctx context.Context) error {
	c.store.SetRefreshing(true)
	defer c.store.SetRefreshing(false)

	posts, err := c.api.GetMemes(ctx, api.MemeQuery{Page: 1, Limit: c.pageSize, Viewer: c.viewer})
	if err != nil {
		c.fail("refresh", err)
		return err
	}
	c.store.SetError("")
	c.store.SetPosts(posts)
	return nil
}

// LoadMore appends the next page. It does nothing once a page came back empty
// or while another load is running.
func (c *Controller) LoadMore(ctx context.Context) error {
	snap := c.store.Snapshot()
	if !snap.HasMore || snap.IsLoading {
		return nil
	}
	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	next := snap.Page + 1
	posts, err := c.api.GetMemes(ctx, api.MemeQuery{Page: next, Limit: c.pageSize, Viewer: c.viewer})
	if err != nil {
		c.fail("load more", err)
		return err
	}
	c.store.AddPosts(posts)
	if len(posts) > 0 {
		c.store.IncrementPage()
	}
	return nil
}

// LoadFollowing replaces the feed with posts from the users me follows.
func (c *Controller) LoadFollowing(ctx context.Context, me string) error {
	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	posts, err := c.api.GetFollowingFeed(ctx, me)
	if err != nil {
		c.fail("following feed", err)
		return err
	}
	c.store.SetError("")
	c.store.SetPosts(posts)
	return nil
}

// ToggleLike flips the like on postID in the store right away, then asks
// the server. The server's meme replaces the local one on success. On
// failure the local change is rolled back.
func (c *Controller) ToggleLike(ctx context.Context, postID int64, userID string) error {
	post, ok := c.store.Post(postID)
	if !ok {
		return nil
	}
	liked := !post.IsLiked
	prev, _ := c.store.ApplyLike(postID, liked)

	var updated *models.Meme
	var err error
	if liked {
		updated, err = c.api.LikeMeme(ctx, postID, userID)
	} else {
		updated, err = c.api.UnlikeMeme(ctx, postID, userID)
	}
	if err != nil {
		log.Printf("feed: like toggle failed post=%d liked=%v error=%v", postID, liked, err)
		c.store.RestoreLike(postID, prev)
		return err
	}

	c.store.UpdatePost(postID, func(m *models.Meme) {
		m.Likes = updated.Likes
		m.CommentCount = updated.CommentCount
		// Anonymous likes carry no viewer so the server cannot report is_liked
		if userID != "" {
			m.IsLiked = updated.IsLiked
		}
	})
	return nil
}

func (c *Controller) fail(op string, err error) {
	log.Printf("feed: %s failed error=%v", op, err)
	c.store.SetError(err.Error())
}

// UploadForm is the state behind the upload screen.
type UploadForm struct {
	Caption    string
	Tags       string
	ImageName  string
	Image      io.Reader
	ImageURL   string
	EVMAddress string
	MediaType  string
}

// CanSubmit reports whether the form has something to upload.
func (f UploadForm) CanSubmit() bool {
	return f.Image != nil || strings.TrimSpace(f.ImageURL) != ""
}

// Submit uploads the form and puts the new meme at the top of the feed.
func (c *Controller) Submit(ctx context.Context, f UploadForm) (*models.Meme, error) {
	if !f.CanSubmit() {
		return nil, ErrNothingToUpload
	}
	meme, err := c.api.UploadMeme(ctx, api.Upload{
		Caption:    strings.TrimSpace(f.Caption),
		Tags:       models.JoinTags(models.SplitTags(f.Tags)),
		EVMAddress: f.EVMAddress,
		MediaType:  f.MediaType,
		ImageURL:   strings.TrimSpace(f.ImageURL),
		ImageName:  f.ImageName,
		Image:      f.Image,
	})
	if err != nil {
		log.Printf("feed: upload failed error=%v", err)
		return nil, err
	}
	c.store.PrependPost(*meme)
	return meme, nil
}
