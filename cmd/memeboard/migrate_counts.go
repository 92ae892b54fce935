package main

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/4xmen/memeboard/pkg/config"
)

type recountOptions struct {
	DatabasePath string
	DryRun       bool
}

// counterCheck pairs a drift query with the update that repairs it.
type counterCheck struct {
	name   string
	drift  string
	repair string
}

// Likes without a user id are not recorded in meme_likes, so likes is only
// raised to the number of recorded likers, never lowered.
var counterChecks = []counterCheck{
	{
		name:   "meme comment_count",
		drift:  "SELECT COUNT(*) FROM memes m WHERE m.comment_count != (SELECT COUNT(*) FROM comments c WHERE c.meme_id = m.id)",
		repair: "UPDATE memes SET comment_count = (SELECT COUNT(*) FROM comments c WHERE c.meme_id = memes.id)",
	},
	{
		name:   "meme likes",
		drift:  "SELECT COUNT(*) FROM memes m WHERE m.likes < (SELECT COUNT(*) FROM meme_likes l WHERE l.meme_id = m.id)",
		repair: "UPDATE memes SET likes = MAX(likes, (SELECT COUNT(*) FROM meme_likes l WHERE l.meme_id = memes.id))",
	},
	{
		name:   "user followers_count",
		drift:  "SELECT COUNT(*) FROM users u WHERE u.followers_count != (SELECT COUNT(*) FROM follows f WHERE f.following_id = u.wallet_address)",
		repair: "UPDATE users SET followers_count = (SELECT COUNT(*) FROM follows f WHERE f.following_id = users.wallet_address)",
	},
	{
		name:   "user following_count",
		drift:  "SELECT COUNT(*) FROM users u WHERE u.following_count != (SELECT COUNT(*) FROM follows f WHERE f.follower_id = u.wallet_address)",
		repair: "UPDATE users SET following_count = (SELECT COUNT(*) FROM follows f WHERE f.follower_id = users.wallet_address)",
	},
}

func runMigrate(cfg *config.Config, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing migration target (supported: recount)")
	}

	switch args[0] {
	case "recount":
		opts, err := parseRecountArgs(cfg, args[1:])
		if err != nil {
			return err
		}
		return runRecount(out, opts)
	default:
		return fmt.Errorf("unknown migration target: %s", args[0])
	}
}

func parseRecountArgs(cfg *config.Config, args []string) (recountOptions, error) {
	opts := recountOptions{DatabasePath: cfg.DatabasePath}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dry-run":
			opts.DryRun = true
		case "--database":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return opts, fmt.Errorf("--database requires a path")
			}
			opts.DatabasePath = args[i]
		default:
			return opts, fmt.Errorf("unknown migration flag: %s", args[i])
		}
	}

	if strings.TrimSpace(opts.DatabasePath) == "" {
		return opts, fmt.Errorf("database path cannot be empty")
	}

	return opts, nil
}

func runRecount(out io.Writer, opts recountOptions) error {
	dbConn, err := sql.Open("sqlite3", opts.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer dbConn.Close()

	// BEGIN/COMMIT are issued as statements so every call must share one connection
	dbConn.SetMaxOpenConns(1)

	if err := dbConn.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := dbConn.Exec("BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to start migration transaction: %w", err)
	}
	inTx := true
	defer func() {
		if inTx {
			_, _ = dbConn.Exec("ROLLBACK")
		}
	}()

	drift, total, err := measureDrift(dbConn)
	if err != nil {
		return err
	}

	if total == 0 {
		if _, err := dbConn.Exec("COMMIT"); err != nil {
			return fmt.Errorf("failed to finish migration transaction: %w", err)
		}
		inTx = false
		fmt.Fprintln(out, "Counter recount: all counters already match.")
		return nil
	}

	if opts.DryRun {
		fmt.Fprintf(out, "Dry-run successful. Database: %s\n", opts.DatabasePath)
		printDrift(out, drift, "Would fix")
		if _, err := dbConn.Exec("ROLLBACK"); err != nil {
			return fmt.Errorf("failed to finish dry-run rollback: %w", err)
		}
		inTx = false
		return nil
	}

	for _, check := range counterChecks {
		if _, err := dbConn.Exec(check.repair); err != nil {
			return fmt.Errorf("failed to recount %s: %w", check.name, err)
		}
	}

	if err := validateRecount(dbConn); err != nil {
		return err
	}

	if _, err := dbConn.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	inTx = false

	fmt.Fprintf(out, "Recount completed. Database: %s\n", opts.DatabasePath)
	printDrift(out, drift, "Fixed")
	return nil
}

func measureDrift(dbConn *sql.DB) (map[string]int64, int64, error) {
	drift := make(map[string]int64, len(counterChecks))
	var total int64
	for _, check := range counterChecks {
		n, err := queryInt64(dbConn, check.drift)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to measure %s: %w", check.name, err)
		}
		drift[check.name] = n
		total += n
	}
	return drift, total, nil
}

func queryInt64(db *sql.DB, query string) (int64, error) {
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

func printDrift(out io.Writer, drift map[string]int64, verb string) {
	for _, check := range counterChecks {
		if n := drift[check.name]; n > 0 {
			fmt.Fprintf(out, "%s %d row(s) with a stale %s.\n", verb, n, check.name)
		}
	}
}

func validateRecount(dbConn *sql.DB) error {
	drift, total, err := measureDrift(dbConn)
	if err != nil {
		return err
	}
	if total != 0 {
		return fmt.Errorf("counters still drift after recount: %v", drift)
	}
	return nil
}
