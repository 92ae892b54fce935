package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

// pragmas run on every new database handle, in order.
var pragmas = []struct{ name, stmt string }{
	// WAL lets the polling readers run while a writer commits
	{"journal mode", "PRAGMA journal_mode=WAL"},
	{"busy timeout", "PRAGMA busy_timeout=5000"},
	{"synchronous mode", "PRAGMA synchronous=NORMAL"},
	// 64MB page cache
	{"cache size", "PRAGMA cache_size=-64000"},
}

// New opens the sqlite file at path and brings its schema up to date.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set %s: %w", p.name, err)
		}
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Schema is exported so tests in other packages can build the same tables.
const Schema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		wallet_address TEXT UNIQUE NOT NULL,
		username TEXT UNIQUE,
		email TEXT,
		name TEXT,
		bio TEXT,
		profile_picture TEXT,
		oauth_provider TEXT NOT NULL,
		oauth_id TEXT NOT NULL,
		password_hash TEXT,
		followers_count INTEGER NOT NULL DEFAULT 0,
		following_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (oauth_provider, oauth_id)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token_id TEXT UNIQUE NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS memes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		caption TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		video TEXT,
		media_type TEXT NOT NULL DEFAULT 'image',
		evm_address TEXT,
		likes INTEGER NOT NULL DEFAULT 0,
		comment_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS meme_likes (
		meme_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (meme_id, user_id),
		FOREIGN KEY (meme_id) REFERENCES memes(id)
	);

	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		meme_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (meme_id) REFERENCES memes(id)
	);

	CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL,
		following_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (follower_id, following_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		text TEXT,
		meme_id INTEGER,
		media_url TEXT,
		client_message_id TEXT,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		endpoint TEXT UNIQUE NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		revoked_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_memes_evm_address ON memes(evm_address);
	CREATE INDEX IF NOT EXISTS idx_memes_created_at ON memes(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_comments_meme_id ON comments(meme_id);
	CREATE INDEX IF NOT EXISTS idx_follows_following_id ON follows(following_id);
	CREATE INDEX IF NOT EXISTS idx_messages_sender_receiver ON messages(sender_id, receiver_id);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);
	CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, sender_id, is_read);
	CREATE INDEX IF NOT EXISTS idx_push_subscriptions_user_id ON push_subscriptions(user_id);
`

func (db *DB) migrate() error {
	_, err := db.conn.Exec(Schema)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) GetConn() *sql.DB {
	return db.conn
}
