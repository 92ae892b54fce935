package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/pkg/models"
	"github.com/4xmen/memeboard/pkg/wallet"
)

type UserHandler struct {
	db *sql.DB
}

func NewUserHandler(conn *sql.DB) *UserHandler {
	return &UserHandler{db: conn}
}

// RegisterUser registers an oauth user, returning the existing row when the
// provider identity is already known
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req models.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}

	existing, err := db.ScanUser(h.db.QueryRow(
		"SELECT "+db.UserColumns+" FROM users u WHERE u.oauth_provider = ? AND u.oauth_id = ?",
		req.OAuthProvider, req.OAuthID,
	))
	if err == nil {
		c.JSON(http.StatusOK, existing)
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query user"})
		return
	}

	address := req.WalletAddress
	if address == "" {
		address = wallet.DeriveAddress(req.OAuthProvider, req.OAuthID)
	}

	_, err = h.db.Exec(`
		INSERT INTO users (wallet_address, email, name, profile_picture, bio, oauth_provider, oauth_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, address, req.Email, req.Name, req.ProfilePicture, req.Bio, req.OAuthProvider, req.OAuthID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "wallet address already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	user, err := db.UserByWallet(h.db, address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	log.Printf("users: registered wallet=%s provider=%s", address, req.OAuthProvider)
	c.JSON(http.StatusOK, user)
}

// likeEscaper makes the LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchUsers matches email, name or wallet case-insensitively
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		query = strings.TrimSpace(c.Query("q"))
	}
	if query == "" {
		c.JSON(http.StatusOK, []*models.User{})
		return
	}

	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	rows, err := h.db.Query(`
		SELECT `+db.UserColumns+` FROM users u
		WHERE LOWER(COALESCE(u.email, '')) LIKE ? ESCAPE '\'
		   OR LOWER(COALESCE(u.name, '')) LIKE ? ESCAPE '\'
		   OR LOWER(COALESCE(u.username, '')) LIKE ? ESCAPE '\'
		   OR LOWER(u.wallet_address) LIKE ? ESCAPE '\'
		ORDER BY u.id
		LIMIT 50
	`, pattern, pattern, pattern, pattern)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}
	h.respondUsers(c, rows)
}

// ListUsers returns every user
func (h *UserHandler) ListUsers(c *gin.Context) {
	rows, err := h.db.Query("SELECT " + db.UserColumns + " FROM users u ORDER BY u.id")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch users"})
		return
	}
	h.respondUsers(c, rows)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := db.UserByWallet(h.db, c.Param("wallet"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile applies the non-nil fields of the request
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingError(err)})
		return
	}

	address := c.Param("wallet")
	res, err := h.db.Exec(`
		UPDATE users SET
			name = COALESCE(?, name),
			bio = COALESCE(?, bio),
			profile_picture = COALESCE(?, profile_picture),
			updated_at = CURRENT_TIMESTAMP
		WHERE wallet_address = ?
	`, req.Name, req.Bio, req.ProfilePicture, address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user, err := db.UserByWallet(h.db, address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUserPosts returns the memes created by a wallet, newest first
func (h *UserHandler) GetUserPosts(c *gin.Context) {
	rows, err := h.db.Query(
		"SELECT "+db.MemeColumns+db.MemeFrom+" WHERE m.evm_address = ? ORDER BY m.created_at DESC, m.id DESC",
		c.Query("viewer"), c.Param("wallet"),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch posts"})
		return
	}
	memes, err := db.CollectMemes(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan posts"})
		return
	}
	c.JSON(http.StatusOK, memes)
}

func (h *UserHandler) GetFollowers(c *gin.Context) {
	rows, err := h.db.Query(`
		SELECT `+db.UserColumns+` FROM follows f
		JOIN users u ON u.wallet_address = f.follower_id
		WHERE f.following_id = ?
		ORDER BY f.created_at DESC
	`, c.Param("wallet"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch followers"})
		return
	}
	h.respondUsers(c, rows)
}

func (h *UserHandler) GetFollowing(c *gin.Context) {
	rows, err := h.db.Query(`
		SELECT `+db.UserColumns+` FROM follows f
		JOIN users u ON u.wallet_address = f.following_id
		WHERE f.follower_id = ?
		ORDER BY f.created_at DESC
	`, c.Param("wallet"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch following"})
		return
	}
	h.respondUsers(c, rows)
}

func (h *UserHandler) respondUsers(c *gin.Context, rows *sql.Rows) {
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := db.ScanUser(rows)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan user"})
			return
		}
		users = append(users, u)
	}
	c.JSON(http.StatusOK, users)
}
