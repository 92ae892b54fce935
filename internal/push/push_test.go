package push

import (
	"database/sql"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	_ "github.com/mattn/go-sqlite3"

	"github.com/4xmen/memeboard/internal/db"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", t.TempDir()+"/push.db")
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := conn.Exec(db.Schema); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return conn
}

func countActive(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM push_subscriptions WHERE revoked_at IS NULL").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestNewNotifierNeedsKeys(t *testing.T) {
	if n := NewNotifier(nil, "", "priv"); n != nil {
		t.Fatal("expected nil notifier without public key")
	}
	var n *Notifier
	if n.VAPIDPublicKey() != "" {
		t.Fatal("nil notifier should have empty key")
	}
	// Must not panic.
	n.SendNewMessageNotification("0xb", "alice", "gm", "0xb_0xa")
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	conn := setupTestDB(t)
	sub := Subscription{Endpoint: "https://push.example/1", KeyP256dh: "p", KeyAuth: "a"}

	if err := Subscribe(conn, "0xb", sub); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := Subscribe(conn, "0xb", sub); err != nil {
		t.Fatalf("re-Subscribe should upsert: %v", err)
	}
	if got := countActive(t, conn); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}

	ok, err := Unsubscribe(conn, "0xb", sub.Endpoint)
	if err != nil || !ok {
		t.Fatalf("Unsubscribe = %v, %v", ok, err)
	}
	if got := countActive(t, conn); got != 0 {
		t.Fatalf("active = %d, want 0", got)
	}
	if ok, _ := Unsubscribe(conn, "0xb", sub.Endpoint); ok {
		t.Fatal("second Unsubscribe should report nothing revoked")
	}

	if err := Subscribe(conn, "0xb", sub); err != nil {
		t.Fatalf("Subscribe after revoke: %v", err)
	}
	if got := countActive(t, conn); got != 1 {
		t.Fatalf("resubscribe should reactivate, active = %d", got)
	}
}

func TestSendRemovesExpiredSubscriptions(t *testing.T) {
	conn := setupTestDB(t)
	Subscribe(conn, "0xb", Subscription{Endpoint: "https://push.example/gone", KeyP256dh: "p", KeyAuth: "a"})
	Subscribe(conn, "0xb", Subscription{Endpoint: "https://push.example/ok", KeyP256dh: "p", KeyAuth: "a"})

	var mu sync.Mutex
	var bodies []string
	n := NewNotifier(conn, "pub", "priv")
	n.send = func(data []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error) {
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		status := http.StatusCreated
		if strings.HasSuffix(sub.Endpoint, "/gone") {
			status = http.StatusGone
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}

	// Notify returns once every push service has answered.
	n.SendNewMessageNotification("0xb", "alice", "gm", "0xb_0xa")

	if got := countActive(t, conn); got != 1 {
		t.Fatalf("active = %d, want expired subscription removed", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 || !strings.Contains(bodies[0], `"title":"alice"`) || !strings.Contains(bodies[0], `"url":"/messages/0xb_0xa"`) {
		t.Fatalf("unexpected payloads: %v", bodies)
	}
}

func TestNotifyWithoutSubscriptions(t *testing.T) {
	conn := setupTestDB(t)
	n := NewNotifier(conn, "pub", "priv")
	n.send = func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		t.Fatal("send should not be called")
		return nil, nil
	}
	n.Notify("0xnobody", Notification{Title: "hi"})
}
