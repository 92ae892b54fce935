package main

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"

	"github.com/4xmen/memeboard/internal/db"
)

func createDriftedDB(t *testing.T) string {
	t.Helper()
	cfg := testConfig(t)

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer database.Close()

	_, err = database.GetConn().Exec(`
		INSERT INTO users (wallet_address, oauth_provider, oauth_id, followers_count, following_count) VALUES ('0xa', 'demo', 'a', 5, 0);
		INSERT INTO users (wallet_address, oauth_provider, oauth_id, followers_count, following_count) VALUES ('0xb', 'demo', 'b', 0, 0);
		INSERT INTO follows (follower_id, following_id) VALUES ('0xa', '0xb');
		INSERT INTO memes (id, caption, likes, comment_count) VALUES (1, 'stale', 0, 4);
		INSERT INTO memes (id, caption, likes, comment_count) VALUES (2, 'anonymous likes', 7, 0);
		INSERT INTO meme_likes (meme_id, user_id) VALUES (1, '0xa');
		INSERT INTO meme_likes (meme_id, user_id) VALUES (1, '0xb');
		INSERT INTO meme_likes (meme_id, user_id) VALUES (2, '0xa');
		INSERT INTO comments (meme_id, user_id, text) VALUES (1, '0xa', 'first');
	`)
	if err != nil {
		t.Fatalf("failed to seed drifted data: %v", err)
	}
	return cfg.DatabasePath
}

func TestParseRecountArgs(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		wantDry bool
		wantDB  string
	}{
		{name: "defaults", args: nil, wantDB: cfg.DatabasePath},
		{name: "dry run", args: []string{"--dry-run"}, wantDry: true, wantDB: cfg.DatabasePath},
		{name: "database", args: []string{"--database", "/tmp/x.db"}, wantDB: "/tmp/x.db"},
		{name: "missing path", args: []string{"--database"}, wantErr: true},
		{name: "unknown flag", args: []string{"--force"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseRecountArgs(cfg, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if opts.DryRun != tt.wantDry || opts.DatabasePath != tt.wantDB {
				t.Fatalf("opts = %+v", opts)
			}
		})
	}
}

func TestRecountDryRunLeavesData(t *testing.T) {
	dbPath := createDriftedDB(t)

	var out bytes.Buffer
	if err := runRecount(&out, recountOptions{DatabasePath: dbPath, DryRun: true}); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !strings.Contains(out.String(), "Would fix 1 row(s) with a stale meme comment_count") {
		t.Fatalf("unexpected dry-run output: %s", out.String())
	}

	conn, _ := sql.Open("sqlite3", dbPath)
	defer conn.Close()
	var commentCount int
	conn.QueryRow("SELECT comment_count FROM memes WHERE id = 1").Scan(&commentCount)
	if commentCount != 4 {
		t.Fatalf("dry run modified data: comment_count = %d", commentCount)
	}
}

func TestRecountFixesCounters(t *testing.T) {
	dbPath := createDriftedDB(t)

	var out bytes.Buffer
	if err := runRecount(&out, recountOptions{DatabasePath: dbPath}); err != nil {
		t.Fatalf("recount failed: %v", err)
	}
	if !strings.Contains(out.String(), "Recount completed") {
		t.Fatalf("expected completion output, got: %s", out.String())
	}

	conn, _ := sql.Open("sqlite3", dbPath)
	defer conn.Close()

	tests := []struct {
		query string
		want  int
	}{
		{"SELECT comment_count FROM memes WHERE id = 1", 1},
		{"SELECT likes FROM memes WHERE id = 1", 2},
		{"SELECT likes FROM memes WHERE id = 2", 7},
		{"SELECT followers_count FROM users WHERE wallet_address = '0xa'", 0},
		{"SELECT following_count FROM users WHERE wallet_address = '0xa'", 1},
		{"SELECT followers_count FROM users WHERE wallet_address = '0xb'", 1},
	}
	for _, tt := range tests {
		var got int
		if err := conn.QueryRow(tt.query).Scan(&got); err != nil {
			t.Fatalf("%s: %v", tt.query, err)
		}
		if got != tt.want {
			t.Errorf("%s = %d, want %d", tt.query, got, tt.want)
		}
	}

	out.Reset()
	if err := runRecount(&out, recountOptions{DatabasePath: dbPath}); err != nil {
		t.Fatalf("second recount failed: %v", err)
	}
	if !strings.Contains(out.String(), "already match") {
		t.Fatalf("second run should be a no-op, got: %s", out.String())
	}
}

func TestMeasureDrift(t *testing.T) {
	conn, err := sql.Open("sqlite3", createDriftedDB(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	drift, total, err := measureDrift(conn)
	if err != nil {
		t.Fatalf("measureDrift: %v", err)
	}
	want := map[string]int64{
		"meme comment_count":   1,
		"meme likes":           1,
		"user followers_count": 2,
		"user following_count": 1,
	}
	for name, n := range want {
		if drift[name] != n {
			t.Errorf("drift[%q] = %d, want %d", name, drift[name], n)
		}
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}

	if n, err := queryInt64(conn, "SELECT COUNT(*) FROM memes"); err != nil || n != 2 {
		t.Fatalf("queryInt64 = %d, %v", n, err)
	}
	if _, err := queryInt64(conn, "SELECT COUNT(*) FROM missing_table"); err == nil {
		t.Fatal("queryInt64 should fail on a bad query")
	}
}

func TestRunMigrateUnknownTarget(t *testing.T) {
	var out bytes.Buffer
	if err := runMigrate(testConfig(t), &out, nil); err == nil {
		t.Fatal("expected error without target")
	}
	if err := runMigrate(testConfig(t), &out, []string{"conversation-participants"}); err == nil {
		t.Fatal("expected error for unknown target")
	}
}
