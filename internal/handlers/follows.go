package handlers

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/internal/events"
	"github.com/4xmen/memeboard/pkg/models"
)

type FollowHandler struct {
	db        *sql.DB
	publisher events.Publisher
}

func NewFollowHandler(conn *sql.DB, publisher events.Publisher) *FollowHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &FollowHandler{db: conn, publisher: publisher}
}

// Follow records follower -> following and bumps both counters
func (h *FollowHandler) Follow(c *gin.Context) {
	var req models.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}
	if req.FollowerID == req.FollowingID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot follow yourself"})
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to follow"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO follows (follower_id, following_id) VALUES (?, ?)", req.FollowerID, req.FollowingID); err != nil {
		if db.IsUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Already following"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to follow"})
		return
	}

	if err := adjustFollowCounts(tx, req.FollowerID, req.FollowingID, 1); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to follow"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to follow"})
		return
	}

	publish(c.Request.Context(), h.publisher, events.Event{
		Type:      events.UserFollowed,
		ActorID:   req.FollowerID,
		SubjectID: req.FollowingID,
	})

	log.Printf("follows: %s now follows %s", req.FollowerID, req.FollowingID)
	c.JSON(http.StatusOK, gin.H{"message": "Followed successfully"})
}

// Unfollow removes the relation. 404 when it did not exist.
func (h *FollowHandler) Unfollow(c *gin.Context) {
	var req models.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unfollow"})
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM follows WHERE follower_id = ? AND following_id = ?", req.FollowerID, req.FollowingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unfollow"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not following"})
		return
	}

	if err := adjustFollowCounts(tx, req.FollowerID, req.FollowingID, -1); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unfollow"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unfollow"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed successfully"})
}

func (h *FollowHandler) CheckFollowing(c *gin.Context) {
	var following bool
	err := h.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = ? AND following_id = ?)",
		c.Param("follower"), c.Param("following"),
	).Scan(&following)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check follow"})
		return
	}
	c.JSON(http.StatusOK, models.FollowStatus{IsFollowing: following})
}

// adjustFollowCounts moves the denormalized counters by delta, never below zero
func adjustFollowCounts(tx *sql.Tx, follower, following string, delta int) error {
	if _, err := tx.Exec(
		"UPDATE users SET following_count = MAX(following_count + ?, 0) WHERE wallet_address = ?",
		delta, follower,
	); err != nil {
		return err
	}
	_, err := tx.Exec(
		"UPDATE users SET followers_count = MAX(followers_count + ?, 0) WHERE wallet_address = ?",
		delta, following,
	)
	return err
}
