package main

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/pkg/config"
	"github.com/4xmen/memeboard/pkg/models"
	"github.com/4xmen/memeboard/pkg/wallet"
)

type seedOptions struct {
	Users int
	Memes int
	Seed  int64
}

func parseSeedArgs(args []string) (seedOptions, error) {
	opts := seedOptions{Users: 10, Memes: 30, Seed: time.Now().UnixNano()}

	for i := 0; i < len(args); i++ {
		flag := args[i]
		switch flag {
		case "--users", "--memes", "--seed":
			i++
			if i >= len(args) {
				return opts, fmt.Errorf("%s requires a value", flag)
			}
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil || n < 0 {
				return opts, fmt.Errorf("%s must be a non-negative number", flag)
			}
			switch flag {
			case "--users":
				opts.Users = int(n)
			case "--memes":
				opts.Memes = int(n)
			default:
				opts.Seed = n
			}
		default:
			return opts, fmt.Errorf("unknown seed flag: %s", flag)
		}
	}

	if opts.Memes > 0 && opts.Users == 0 {
		return opts, fmt.Errorf("--memes needs at least one user")
	}
	return opts, nil
}

func runSeed(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseSeedArgs(args)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	wallets, memes, err := seedFakeData(database.GetConn(), opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Seeded %d users and %d memes into %s\n", len(wallets), memes, cfg.DatabasePath)
	return nil
}

// seedFakeData inserts demo users with follows between them and memes
// attributed to those users, then recounts the denormalized counters.
func seedFakeData(conn *sql.DB, opts seedOptions) ([]string, int, error) {
	faker := gofakeit.New(opts.Seed)

	tx, err := conn.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start seed transaction: %w", err)
	}
	defer tx.Rollback()

	wallets := make([]string, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		oauthID := faker.UUID()
		address := wallet.DeriveAddress("demo", oauthID)
		if _, err := tx.Exec(`
			INSERT INTO users (wallet_address, email, name, bio, profile_picture, oauth_provider, oauth_id)
			VALUES (?, ?, ?, ?, ?, 'demo', ?)
		`, address, faker.Email(), faker.Name(), faker.HipsterSentence(6), faker.ImageURL(200, 200), oauthID); err != nil {
			return nil, 0, fmt.Errorf("failed to seed user: %w", err)
		}
		wallets = append(wallets, address)
	}

	for _, follower := range wallets {
		if len(wallets) < 2 {
			break
		}
		following := wallets[faker.Number(0, len(wallets)-1)]
		if following == follower {
			continue
		}
		if _, err := tx.Exec("INSERT OR IGNORE INTO follows (follower_id, following_id) VALUES (?, ?)", follower, following); err != nil {
			return nil, 0, fmt.Errorf("failed to seed follow: %w", err)
		}
	}

	for i := 0; i < opts.Memes; i++ {
		creator := wallets[faker.Number(0, len(wallets)-1)]
		tags := models.JoinTags([]string{faker.Word(), faker.Word()})
		res, err := tx.Exec(`
			INSERT INTO memes (caption, tags, image, media_type, evm_address, likes)
			VALUES (?, ?, ?, 'image', ?, ?)
		`, faker.Sentence(6), tags, faker.ImageURL(640, 480), creator, faker.Number(0, 20))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to seed meme: %w", err)
		}
		memeID, _ := res.LastInsertId()

		for c := faker.Number(0, 3); c > 0; c-- {
			author := wallets[faker.Number(0, len(wallets)-1)]
			if _, err := tx.Exec("INSERT INTO comments (meme_id, user_id, text) VALUES (?, ?, ?)", memeID, author, faker.Sentence(8)); err != nil {
				return nil, 0, fmt.Errorf("failed to seed comment: %w", err)
			}
		}
	}

	for _, check := range counterChecks {
		if _, err := tx.Exec(check.repair); err != nil {
			return nil, 0, fmt.Errorf("failed to recount %s: %w", check.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit seed: %w", err)
	}
	return wallets, opts.Memes, nil
}
