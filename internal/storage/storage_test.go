package storage

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/4xmen/memeboard/pkg/config"
)

func TestGenerateFilename(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f-]{36}_\d+\.(png|jpg)$`)

	for _, name := range []string{"doge.PNG", "no-extension"} {
		got := GenerateFilename(name)
		if !pattern.MatchString(got) {
			t.Fatalf("GenerateFilename(%q) = %q", name, got)
		}
	}
	if !strings.HasSuffix(GenerateFilename("noext"), ".jpg") {
		t.Fatal("files without extension should default to jpg")
	}
	if GenerateFilename("a.png") == GenerateFilename("a.png") {
		t.Fatal("generated names must be unique")
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.jpg":  "image/jpeg",
		"a.JPEG": "image/jpeg",
		"a.png":  "image/png",
		"a.gif":  "image/gif",
		"a.webp": "image/webp",
		"a.mp4":  "video/mp4",
		"a.bin":  "application/octet-stream",
		"a":      "application/octet-stream",
	}
	for name, want := range tests {
		if got := ContentType(name); got != want {
			t.Fatalf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
	if MediaType("video/mp4") != "video" || MediaType("image/png") != "image" {
		t.Fatal("unexpected MediaType classification")
	}
}

func TestLocalSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocal(dir, "http://localhost:8000/")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	url, err := backend.Save(context.Background(), "doge.png", "image/png", strings.NewReader("wow"), 3)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "http://localhost:8000/uploads/doge.png" {
		t.Fatalf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "doge.png"))
	if err != nil || string(data) != "wow" {
		t.Fatalf("stored file = %q, %v", data, err)
	}

	if err := backend.Delete(context.Background(), "https://i.kym-cdn.com/doge.jpg"); err != nil {
		t.Fatalf("Delete of foreign URL should be a no-op: %v", err)
	}
	if err := backend.Delete(context.Background(), url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "doge.png")); !os.IsNotExist(err) {
		t.Fatalf("file still present after delete: %v", err)
	}
	if err := backend.Delete(context.Background(), url); err != nil {
		t.Fatalf("second Delete should ignore missing file: %v", err)
	}
}

func TestLocalSaveStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocal(dir, "http://localhost:8000")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	url, err := backend.Save(context.Background(), "../../escape.png", "image/png", strings.NewReader("x"), 1)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if url != "http://localhost:8000/uploads/escape.png" {
		t.Fatalf("url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.png")); err != nil {
		t.Fatalf("file not written inside upload dir: %v", err)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	cfg := &config.Config{StorageType: "ftp"}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}

func TestS3URLs(t *testing.T) {
	s3, err := NewS3(S3Config{Endpoint: "http://minio:9000", Bucket: "memes", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if got := s3.objectURL("memes/a.png"); got != "http://minio:9000/memes/memes/a.png" {
		t.Fatalf("objectURL = %q", got)
	}
	if err := s3.Delete(context.Background(), "http://elsewhere/a.png"); err != nil {
		t.Fatalf("Delete of foreign URL should be a no-op: %v", err)
	}

	if _, err := NewS3(S3Config{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
