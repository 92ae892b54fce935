package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/4xmen/memeboard/pkg/config"
)

// dataCounts are the row counts read from the database.
type dataCounts struct {
	Users             int64  `json:"users"`
	Memes             int64  `json:"memes"`
	VideoMemes        int64  `json:"video_memes"`
	Likes             int64  `json:"likes"`
	Comments          int64  `json:"comments"`
	Follows           int64  `json:"follows"`
	Messages          int64  `json:"messages"`
	UnreadMessages    int64  `json:"unread_messages"`
	PushSubscriptions int64  `json:"push_subscriptions"`
	MemesLast24h      int64  `json:"memes_last_24h"`
	LatestMemeAt      string `json:"latest_meme_at"`
}

// footprint is what the instance occupies on disk.
type footprint struct {
	DBFile      int64 `json:"db_file_bytes"`
	DBWAL       int64 `json:"db_wal_bytes"`
	DBSHM       int64 `json:"db_shm_bytes"`
	UploadBytes int64 `json:"upload_dir_bytes"`
	UploadFiles int64 `json:"upload_file_count"`
}

func (f footprint) DBTotal() int64 { return f.DBFile + f.DBWAL + f.DBSHM }

type appStatus struct {
	GeneratedAt     time.Time  `json:"generated_at"`
	Environment     string     `json:"environment"`
	Port            string     `json:"port"`
	DatabasePath    string     `json:"database_path"`
	StorageType     string     `json:"storage_type"`
	FileStoragePath string     `json:"file_storage_path"`
	Ready           bool       `json:"metrics_ready"`
	Data            dataCounts `json:"metrics"`
	Disk            footprint  `json:"storage"`
	Warnings        []string   `json:"warnings"`
}

func (s *appStatus) warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

type statusOptions struct {
	JSON bool
}

func parseStatusArgs(args []string) (statusOptions, error) {
	var opts statusOptions
	for _, arg := range args {
		if arg != "--json" && arg != "-j" {
			return opts, fmt.Errorf("unknown status flag: %s", arg)
		}
		opts.JSON = true
	}
	return opts, nil
}

func runStatus(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseStatusArgs(args)
	if err != nil {
		return err
	}
	status := collectStatus(cfg)
	if opts.JSON {
		return printStatusJSON(out, status)
	}
	printStatus(out, status)
	return nil
}

func collectStatus(cfg *config.Config) appStatus {
	status := appStatus{
		GeneratedAt:     time.Now(),
		Environment:     cfg.Environment,
		Port:            cfg.Port,
		DatabasePath:    cfg.DatabasePath,
		StorageType:     cfg.StorageType,
		FileStoragePath: cfg.FileStoragePath,
	}

	if err := readCounts(cfg.DatabasePath, &status.Data); err != nil {
		status.warn("%v", err)
	} else {
		status.Ready = true
	}

	status.Disk.DBFile, _ = fileSize(cfg.DatabasePath)
	status.Disk.DBWAL, _ = fileSize(cfg.DatabasePath + "-wal")
	status.Disk.DBSHM, _ = fileSize(cfg.DatabasePath + "-shm")

	// Objects in a bucket are not counted
	if cfg.StorageType == "" || cfg.StorageType == "local" {
		var err error
		if status.Disk.UploadBytes, status.Disk.UploadFiles, err = dirUsage(cfg.FileStoragePath); err != nil {
			status.warn("upload dir: %v", err)
		}
	}
	return status
}

func readCounts(path string, c *dataCounts) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}

	queries := []struct {
		dest  any
		query string
	}{
		{&c.Users, "SELECT COUNT(*) FROM users"},
		{&c.Memes, "SELECT COUNT(*) FROM memes"},
		{&c.VideoMemes, "SELECT COUNT(*) FROM memes WHERE media_type = 'video'"},
		{&c.Likes, "SELECT COALESCE(SUM(likes), 0) FROM memes"},
		{&c.Comments, "SELECT COUNT(*) FROM comments"},
		{&c.Follows, "SELECT COUNT(*) FROM follows"},
		{&c.Messages, "SELECT COUNT(*) FROM messages"},
		{&c.UnreadMessages, "SELECT COUNT(*) FROM messages WHERE is_read = 0"},
		{&c.PushSubscriptions, "SELECT COUNT(*) FROM push_subscriptions WHERE revoked_at IS NULL"},
		{&c.MemesLast24h, "SELECT COUNT(*) FROM memes WHERE datetime(created_at) >= datetime('now', '-1 day')"},
		{&c.LatestMemeAt, "SELECT COALESCE(CAST(MAX(created_at) AS TEXT), '') FROM memes"},
	}
	for _, q := range queries {
		if err := conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return fmt.Errorf("could not read database stats: %w", err)
		}
	}
	return nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// dirUsage sums the sizes of the regular files under root.
func dirUsage(root string) (size, files int64, err error) {
	err = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		files++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return size, files, nil
}

func formatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n) / 1024
	units := "KMGTPE"
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %ciB", value, units[i])
}

func formatTimestamp(value string) string {
	if value == "" {
		return "n/a"
	}
	return value
}

type statusRow struct {
	label string
	value any
}

func printSection(out io.Writer, title string, rows []statusRow) {
	fmt.Fprintln(out, title)
	for _, r := range rows {
		fmt.Fprintf(out, "  %-18s : %v\n", r.label, r.value)
	}
	fmt.Fprintln(out)
}

func printStatus(out io.Writer, s appStatus) {
	fmt.Fprintln(out, "Memeboard Status")
	fmt.Fprintf(out, "Generated at: %s\n", s.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Environment : %s  port %s\n", s.Environment, s.Port)
	fmt.Fprintf(out, "Database    : %s\n", s.DatabasePath)
	fmt.Fprintf(out, "Storage     : %s (%s)\n\n", s.StorageType, s.FileStoragePath)

	if s.Ready {
		d := s.Data
		printSection(out, "Data", []statusRow{
			{"Users", d.Users},
			{"Memes", fmt.Sprintf("%d (%d video)", d.Memes, d.VideoMemes)},
			{"Likes", d.Likes},
			{"Comments", d.Comments},
			{"Follows", d.Follows},
			{"Messages", fmt.Sprintf("%d (%d unread)", d.Messages, d.UnreadMessages)},
			{"Push subscriptions", d.PushSubscriptions},
			{"Memes last 24h", d.MemesLast24h},
			{"Latest meme at", formatTimestamp(d.LatestMemeAt)},
		})
	} else {
		printSection(out, "Data", []statusRow{{"Database metrics", "n/a"}})
	}

	printSection(out, "Disk", []statusRow{
		{"DB file", formatBytes(s.Disk.DBFile)},
		{"DB WAL/SHM", formatBytes(s.Disk.DBWAL + s.Disk.DBSHM)},
		{"DB footprint", formatBytes(s.Disk.DBTotal())},
		{"Uploads", fmt.Sprintf("%s in %d files", formatBytes(s.Disk.UploadBytes), s.Disk.UploadFiles)},
	})

	for _, w := range s.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", w)
	}
}

func printStatusJSON(out io.Writer, s appStatus) error {
	if s.Warnings == nil {
		s.Warnings = []string{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
