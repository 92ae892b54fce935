// Package state holds the in-memory view state shared by memeboard clients.
//
// Stores are safe for concurrent use. Readers get copies and every mutation
// bumps Version so a renderer can skip unchanged frames.
package state

import (
	"slices"
	"sync"

	"github.com/4xmen/memeboard/pkg/models"
)

type FeedSnapshot struct {
	Posts        []models.Meme
	Page         int
	HasMore      bool
	IsLoading    bool
	IsRefreshing bool
	Error        string
	Version      uint64
}

type FeedStore struct {
	mu           sync.RWMutex
	posts        []models.Meme
	page         int
	hasMore      bool
	isLoading    bool
	isRefreshing bool
	err          string
	version      uint64
}

func NewFeedStore() *FeedStore {
	return &FeedStore{page: 1, hasMore: true}
}

func (s *FeedStore) Snapshot() FeedSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FeedSnapshot{
		Posts:        slices.Clone(s.posts),
		Page:         s.page,
		HasMore:      s.hasMore,
		IsLoading:    s.isLoading,
		IsRefreshing: s.isRefreshing,
		Error:        s.err,
		Version:      s.version,
	}
}

func (s *FeedStore) Post(id int64) (models.Meme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.posts[i], true
	}
	return models.Meme{}, false
}

func (s *FeedStore) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	s.mu.Unlock()
}

// SetPosts replaces the feed with the first page.
func (s *FeedStore) SetPosts(posts []models.Meme) {
	s.mutate(func() {
		s.posts = slices.Clone(posts)
		s.page = 1
		s.hasMore = len(posts) > 0
	})
}

// AddPosts appends a following page.
func (s *FeedStore) AddPosts(posts []models.Meme) {
	s.mutate(func() {
		s.posts = append(s.posts, posts...)
		s.hasMore = len(posts) > 0
	})
}

func (s *FeedStore) PrependPost(post models.Meme) {
	s.mutate(func() {
		s.posts = append([]models.Meme{post}, s.posts...)
	})
}

// UpdatePost applies fn to the post with id. It reports whether the post was found.
func (s *FeedStore) UpdatePost(id int64, fn func(*models.Meme)) bool {
	found := false
	s.mutate(func() {
		if i := s.indexOf(id); i >= 0 {
			fn(&s.posts[i])
			found = true
		}
	})
	return found
}

func (s *FeedStore) RemovePost(id int64) {
	s.mutate(func() {
		s.posts = slices.DeleteFunc(s.posts, func(m models.Meme) bool { return m.ID == id })
	})
}

func (s *FeedStore) IncrementPage() {
	s.mutate(func() { s.page++ })
}

func (s *FeedStore) SetLoading(v bool) {
	s.mutate(func() { s.isLoading = v })
}

func (s *FeedStore) SetRefreshing(v bool) {
	s.mutate(func() { s.isRefreshing = v })
}

func (s *FeedStore) SetError(msg string) {
	s.mutate(func() { s.err = msg })
}

func (s *FeedStore) Reset() {
	s.mutate(func() {
		s.posts = nil
		s.page = 1
		s.hasMore = true
		s.isLoading = false
		s.isRefreshing = false
		s.err = ""
	})
}

// LikeState is what a post looked like before ApplyLike touched it.
type LikeState struct {
	Liked bool
	Likes int
}

// ApplyLike sets the post's liked flag and moves its count by one. Setting
// the state it is already in changes nothing. The count never drops below zero.
func (s *FeedStore) ApplyLike(id int64, liked bool) (prev LikeState, ok bool) {
	s.mutate(func() {
		i := s.indexOf(id)
		if i < 0 {
			return
		}
		p := &s.posts[i]
		prev, ok = LikeState{Liked: p.IsLiked, Likes: p.Likes}, true
		if p.IsLiked == liked {
			return
		}
		p.IsLiked = liked
		if liked {
			p.Likes++
		} else if p.Likes > 0 {
			p.Likes--
		}
	})
	return prev, ok
}

// RestoreLike puts back a state captured by ApplyLike.
func (s *FeedStore) RestoreLike(id int64, prev LikeState) {
	s.UpdatePost(id, func(m *models.Meme) {
		m.IsLiked = prev.Liked
		m.Likes = prev.Likes
	})
}

func (s *FeedStore) indexOf(id int64) int {
	return slices.IndexFunc(s.posts, func(m models.Meme) bool { return m.ID == id })
}
