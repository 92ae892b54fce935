package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/pkg/models"
	"github.com/4xmen/memeboard/pkg/wallet"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrWalletTaken        = errors.New("wallet address already registered")
	ErrSessionInactive    = errors.New("session expired or logged out")
)

type Service struct {
	db        *sql.DB
	jwtSecret string
	tokenTTL  time.Duration
}

type Claims struct {
	UserID        int64  `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	jwt.RegisteredClaims
}

func New(db *sql.DB, jwtSecret string) *Service {
	return NewWithTokenTTL(db, jwtSecret, DefaultTokenTTL)
}

func NewWithTokenTTL(db *sql.DB, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}

	return &Service{
		db:        db,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	DisplayName   string
	WalletAddress string
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// Register creates an email/password account. Accounts without a wallet get
// one derived from the email so every user has a wallet key.
func (s *Service) Register(in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if len(username) < 3 || len(username) > 50 {
		return nil, fmt.Errorf("username must be between 3 and 50 characters")
	}
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("username can only contain letters, numbers, dots and underscores")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}

	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	address := strings.TrimSpace(in.WalletAddress)
	if address == "" {
		address = wallet.DeriveAddress("email", email)
	} else if !wallet.IsAddress(address) {
		return nil, fmt.Errorf("invalid wallet address")
	}

	var emailExists bool
	if err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND password_hash IS NOT NULL)", email).Scan(&emailExists); err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if emailExists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var name any
	if displayName := strings.TrimSpace(in.DisplayName); displayName != "" {
		name = displayName
	}

	_, err = s.db.Exec(`
		INSERT INTO users (wallet_address, username, email, name, oauth_provider, oauth_id, password_hash)
		VALUES (?, ?, ?, ?, 'email', ?, ?)
	`, address, username, email, name, email, string(hash))
	if err != nil {
		if db.IsUniqueViolation(err) {
			switch {
			case strings.Contains(err.Error(), "users.username"):
				return nil, ErrUsernameTaken
			case strings.Contains(err.Error(), "users.wallet_address"):
				return nil, ErrWalletTaken
			default:
				return nil, ErrEmailTaken
			}
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return db.UserByWallet(s.db, address)
}

// Login verifies an email/password pair.
func (s *Service) Login(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var walletAddress string
	var passwordHash string
	err := s.db.QueryRow(
		"SELECT wallet_address, password_hash FROM users WHERE email = ? AND password_hash IS NOT NULL",
		email,
	).Scan(&walletAddress, &passwordHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return db.UserByWallet(s.db, walletAddress)
}

// IssueToken signs a JWT for user and records the session backing it.
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	tokenID := uuid.NewString()
	expiresAt := time.Now().Add(s.tokenTTL).UTC()

	if _, err := s.db.Exec(
		"INSERT INTO sessions (user_id, token_id, expires_at) VALUES (?, ?, ?)",
		user.ID, tokenID, expiresAt,
	); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.GenerateToken(user.ID, user.WalletAddress, tokenID, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *Service) GenerateToken(userID int64, walletAddress, tokenID string, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID:        userID,
		WalletAddress: walletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   walletAddress,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken checks the signature, expiry and backing session of a token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	active, err := s.SessionActive(claims.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrSessionInactive
	}

	return claims, nil
}

func (s *Service) SessionActive(tokenID string) (bool, error) {
	var active bool
	var expiresAt time.Time
	err := s.db.QueryRow(
		"SELECT is_active, expires_at FROM sessions WHERE token_id = ?",
		tokenID,
	).Scan(&active, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query session: %w", err)
	}
	return active && time.Now().Before(expiresAt), nil
}

// Logout deactivates the session behind claims.
func (s *Service) Logout(claims *Claims) error {
	if _, err := s.db.Exec("UPDATE sessions SET is_active = 0 WHERE token_id = ?", claims.ID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func (s *Service) UserByID(userID int64) (*models.User, error) {
	user, err := db.ScanUser(s.db.QueryRow("SELECT "+db.UserColumns+" FROM users u WHERE u.id = ?", userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes only the fields that are non-nil.
func (s *Service) UpdateProfile(userID int64, req models.AuthProfileRequest) (*models.User, error) {
	_, err := s.db.Exec(`
		UPDATE users SET
			name = COALESCE(?, name),
			bio = COALESCE(?, bio),
			profile_picture = COALESCE(?, profile_picture),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, req.DisplayName, req.Bio, req.ProfilePictureURL, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.UserByID(userID)
}
