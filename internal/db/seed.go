package db

import (
	"database/sql"
	"fmt"
)

type demoMeme struct {
	caption      string
	tags         string
	image        string
	evmAddress   string
	likes        int
	commentCount int
}

var demoMemes = []demoMeme{
	{
		caption:      "Doge",
		tags:         "classic, crypto",
		image:        "https://i.kym-cdn.com/entries/icons/original/000/013/564/doge.jpg",
		evmAddress:   "0x39D0F19273036293764262aCb5115F223aEF8f79",
		likes:        12,
		commentCount: 3,
	},
	{
		caption:      "Pepe the Frog",
		tags:         "classic, rare",
		image:        "https://i.kym-cdn.com/entries/icons/original/000/017/618/pepefroggie.jpg",
		evmAddress:   "0x2555ea784eBDb81C1704f8b749Dbbc68aDaCB723",
		likes:        8,
		commentCount: 1,
	},
}

// SeedDemo inserts the demo memes when the memes table is empty.
// It reports whether anything was inserted.
func SeedDemo(conn *sql.DB) (bool, error) {
	var count int
	if err := conn.QueryRow("SELECT COUNT(*) FROM memes").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count memes: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	tx, err := conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to start seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range demoMemes {
		if _, err := tx.Exec(`
			INSERT INTO memes (caption, tags, image, media_type, evm_address, likes, comment_count)
			VALUES (?, ?, ?, 'image', ?, ?, ?)
		`, m.caption, m.tags, m.image, m.evmAddress, m.likes, m.commentCount); err != nil {
			return false, fmt.Errorf("failed to seed meme %q: %w", m.caption, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit seed: %w", err)
	}
	return true, nil
}
