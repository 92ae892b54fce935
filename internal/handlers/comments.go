package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/internal/events"
	"github.com/4xmen/memeboard/pkg/models"
)

const commentColumns = `c.id, c.meme_id, c.user_id, c.text, c.created_at, c.likes,
	u.id, u.wallet_address, u.username, u.name, u.profile_picture`

const commentFrom = ` FROM comments c LEFT JOIN users u ON u.wallet_address = c.user_id`

type CommentHandler struct {
	db        *sql.DB
	publisher events.Publisher
}

func NewCommentHandler(conn *sql.DB, publisher events.Publisher) *CommentHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &CommentHandler{db: conn, publisher: publisher}
}

// GetComments lists a meme's comments, oldest first
func (h *CommentHandler) GetComments(c *gin.Context) {
	memeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rows, err := h.db.Query("SELECT "+commentColumns+commentFrom+" WHERE c.meme_id = ? ORDER BY c.created_at, c.id", memeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch comments"})
		return
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan comment"})
			return
		}
		comments = append(comments, comment)
	}
	c.JSON(http.StatusOK, comments)
}

// AddComment stores a comment and bumps the meme's comment_count
func (h *CommentHandler) AddComment(c *gin.Context) {
	memeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add comment"})
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE memes SET comment_count = comment_count + 1 WHERE id = ?", memeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add comment"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Meme not found"})
		return
	}

	res, err = tx.Exec("INSERT INTO comments (meme_id, user_id, text) VALUES (?, ?, ?)", memeID, req.UserID, text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add comment"})
		return
	}
	commentID, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add comment"})
		return
	}

	comment, err := scanComment(h.db.QueryRow("SELECT "+commentColumns+commentFrom+" WHERE c.id = ?", commentID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load comment"})
		return
	}

	publish(c.Request.Context(), h.publisher, events.Event{
		Type:       events.CommentAdded,
		ActorID:    req.UserID,
		SubjectID:  strconv.FormatInt(memeID, 10),
		Attributes: map[string]any{"comment_id": commentID},
	})

	c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment and decrements comment_count
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	memeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	commentID, ok := parseIDParam(c, "cid")
	if !ok {
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete comment"})
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM comments WHERE id = ? AND meme_id = ?", commentID, memeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete comment"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}

	if _, err := tx.Exec("UPDATE memes SET comment_count = MAX(comment_count - 1, 0) WHERE id = ?", memeID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete comment"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete comment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func scanComment(s db.Scanner) (*models.Comment, error) {
	comment := &models.Comment{}
	var (
		userID         sql.NullInt64
		userWallet     sql.NullString
		username       sql.NullString
		name           sql.NullString
		profilePicture sql.NullString
	)
	err := s.Scan(
		&comment.ID, &comment.PostID, &comment.UserID, &comment.Text, &comment.CreatedAt, &comment.Likes,
		&userID, &userWallet, &username, &name, &profilePicture,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		comment.User = &models.User{
			ID:             userID.Int64,
			WalletAddress:  userWallet.String,
			Username:       optionalString(username),
			Name:           optionalString(name),
			ProfilePicture: optionalString(profilePicture),
		}
	}
	return comment, nil
}

func optionalString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
