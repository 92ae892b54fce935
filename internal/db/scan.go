package db

import (
	"database/sql"
	"strings"

	"github.com/4xmen/memeboard/pkg/models"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// UserColumns selects a user aliased as u, in the order ScanUser expects.
const UserColumns = `u.id, u.wallet_address, u.username, u.email, u.name, u.profile_picture, u.bio,
	u.oauth_provider, u.oauth_id, u.created_at, u.followers_count, u.following_count,
	(SELECT COUNT(*) FROM memes pm WHERE pm.evm_address = u.wallet_address)`

func ScanUser(s Scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(
		&u.ID, &u.WalletAddress, &u.Username, &u.Email, &u.Name, &u.ProfilePicture, &u.Bio,
		&u.OAuthProvider, &u.OAuthID, &u.CreatedAt, &u.FollowersCount, &u.FollowingCount,
		&u.PostsCount,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UserByWallet loads a single user. It returns sql.ErrNoRows when absent.
func UserByWallet(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, wallet string) (*models.User, error) {
	return ScanUser(q.QueryRow("SELECT "+UserColumns+" FROM users u WHERE u.wallet_address = ?", wallet))
}

// MemeColumns selects a meme aliased as m joined to its creator aliased as u.
// The single bind parameter is the viewer used for is_liked.
const MemeColumns = `m.id, m.caption, m.tags, m.image, m.video, m.media_type, m.evm_address,
	m.likes, m.comment_count, m.created_at,
	EXISTS(SELECT 1 FROM meme_likes ml WHERE ml.meme_id = m.id AND ml.user_id = ?),
	u.id, u.wallet_address, u.username, u.name, u.profile_picture,
	u.followers_count, u.following_count`

// MemeFrom is the FROM clause matching MemeColumns.
const MemeFrom = ` FROM memes m LEFT JOIN users u ON u.wallet_address = m.evm_address`

func ScanMeme(s Scanner) (*models.Meme, error) {
	m := &models.Meme{}
	var (
		userID         sql.NullInt64
		userWallet     sql.NullString
		username       sql.NullString
		name           sql.NullString
		profilePicture sql.NullString
		followers      sql.NullInt64
		following      sql.NullInt64
	)
	err := s.Scan(
		&m.ID, &m.Caption, &m.Tags, &m.Image, &m.Video, &m.MediaType, &m.EVMAddress,
		&m.Likes, &m.CommentCount, &m.CreatedAt, &m.IsLiked,
		&userID, &userWallet, &username, &name, &profilePicture, &followers, &following,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		m.User = &models.User{
			ID:             userID.Int64,
			WalletAddress:  userWallet.String,
			Username:       nullable(username),
			Name:           nullable(name),
			ProfilePicture: nullable(profilePicture),
			FollowersCount: int(followers.Int64),
			FollowingCount: int(following.Int64),
		}
	}
	return m, nil
}

// CollectMemes drains rows into a slice and closes them.
func CollectMemes(rows *sql.Rows) ([]*models.Meme, error) {
	defer rows.Close()

	memes := make([]*models.Meme, 0)
	for rows.Next() {
		m, err := ScanMeme(rows)
		if err != nil {
			return nil, err
		}
		memes = append(memes, m)
	}
	return memes, rows.Err()
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
