package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/4xmen/memeboard/pkg/models"
)

// fakeBackend answers the handful of routes memectl calls.
type fakeBackend struct {
	mu       sync.Mutex
	requests []string
	liked    bool
	messages []models.Message
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))

	name := "Doge"
	user := models.User{ID: 1, WalletAddress: "0xme", Name: &name, FollowersCount: 3}
	switch {
	case r.URL.Path == "/auth/login":
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "password123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, models.AuthResponse{User: &user, Token: "tok-1"})
	case r.URL.Path == "/auth/me":
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			return
		}
		writeJSON(w, http.StatusOK, user)
	case r.URL.Path == "/auth/logout":
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	case r.URL.Path == "/memes":
		writeJSON(w, http.StatusOK, []models.Meme{
			{ID: 1, Caption: "Such wow", Tags: "doge", Image: "https://i.imgur.com/doge.jpg", MediaType: "image", Likes: 12},
			{ID: 2, Caption: "Feels good", Image: "https://i.imgur.com/pepe.jpg", MediaType: "image", Likes: 8},
		})
	case r.URL.Path == "/memes/1" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, models.Meme{ID: 1, Likes: 12, IsLiked: b.liked})
	case r.URL.Path == "/memes/1/like":
		b.liked = r.Method == http.MethodPost
		likes := 12
		if b.liked {
			likes = 13
		}
		writeJSON(w, http.StatusOK, models.Meme{ID: 1, Likes: likes, IsLiked: b.liked})
	case strings.HasPrefix(r.URL.Path, "/messages/read/"):
		writeJSON(w, http.StatusOK, models.MarkReadResponse{})
	case r.URL.Path == "/messages/send":
		var req models.SendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		msg := models.Message{
			ID: int64(len(b.messages) + 1), SenderID: req.SenderID, ReceiverID: req.ReceiverID,
			Content: req.Content, Timestamp: time.Now(), ClientMessageID: req.ClientMessageID,
		}
		b.messages = append(b.messages, msg)
		writeJSON(w, http.StatusOK, msg)
	case r.URL.Path == "/messages/0xme/0xfriend":
		writeJSON(w, http.StatusOK, b.messages)
	case r.URL.Path == "/messages/conversations/0xme":
		writeJSON(w, http.StatusOK, []models.Conversation{{ID: "0xme_0xfriend", OtherUserID: "0xfriend", UnreadCount: 2}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type harness struct {
	t       *testing.T
	home    string
	url     string
	backend *fakeBackend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("MEMEBOARD_API_URL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return &harness{t: t, home: t.TempDir(), url: srv.URL, backend: backend}
}

func (h *harness) run(ctx context.Context, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--home", h.home, "--api", h.url}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	if _, err := h.run(context.Background(), "login", "--email", "doge@example.com", "--password", "password123"); err != nil {
		h.t.Fatalf("login: %v", err)
	}
}

func TestSessionFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := loadSession(path)
	if err != nil || s.Token != "" || s.User != nil {
		t.Fatalf("missing session = %+v, %v", s, err)
	}

	want := session{APIURL: "http://localhost:8000", Token: "tok", User: &models.User{WalletAddress: "0xme"}}
	if err := writeSession(path, want); err != nil {
		t.Fatalf("writeSession: %v", err)
	}
	got, err := loadSession(path)
	if err != nil {
		t.Fatalf("loadSession: %v", err)
	}
	if got.APIURL != want.APIURL || got.Token != want.Token || got.User.WalletAddress != "0xme" {
		t.Fatalf("session = %+v", got)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.run(ctx, "login", "--email", "doge@example.com", "--password", "password123")
	if err != nil || !strings.Contains(out, "logged in as Doge (0xme)") {
		t.Fatalf("login = %q, %v", out, err)
	}

	sess, _ := loadSession(filepath.Join(h.home, "session.json"))
	if sess.Token != "tok-1" || sess.APIURL != h.url {
		t.Fatalf("saved session = %+v", sess)
	}

	out, err = h.run(ctx, "whoami")
	if err != nil || !strings.Contains(out, "followers : 3") {
		t.Fatalf("whoami = %q, %v", out, err)
	}

	if out, err = h.run(ctx, "logout"); err != nil || !strings.Contains(out, "logged out") {
		t.Fatalf("logout = %q, %v", out, err)
	}
	if _, err := h.run(ctx, "whoami"); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("whoami after logout err = %v", err)
	}
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(context.Background(), "login", "--email", "doge@example.com", "--password", "wrong")
	if err == nil || !strings.Contains(err.Error(), "invalid email or password") {
		t.Fatalf("err = %v", err)
	}
}

func TestFeedPrintsMemes(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(context.Background(), "feed")
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !strings.Contains(out, "Such wow") || !strings.Contains(out, "Feels good") || !strings.Contains(out, "tags: doge") {
		t.Fatalf("feed output:\n%s", out)
	}
}

func TestLikeAndUnlike(t *testing.T) {
	h := newHarness(t)
	h.login()
	ctx := context.Background()

	out, err := h.run(ctx, "like", "1")
	if err != nil || !strings.Contains(out, "liked #1 (13 likes)") {
		t.Fatalf("like = %q, %v", out, err)
	}
	out, err = h.run(ctx, "unlike", "1")
	if err != nil || !strings.Contains(out, "unliked #1 (12 likes)") {
		t.Fatalf("unlike = %q, %v", out, err)
	}
	if _, err := h.run(ctx, "like", "abc"); err == nil {
		t.Fatal("invalid id should fail")
	}
}

func TestChatRequiresLogin(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(context.Background(), "chat", "list"); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("err = %v", err)
	}
}

func TestChatSendListAndWatch(t *testing.T) {
	h := newHarness(t)
	h.login()
	ctx := context.Background()

	out, err := h.run(ctx, "chat", "send", "0xfriend", "gm")
	if err != nil || !strings.Contains(out, "you: gm") {
		t.Fatalf("send = %q, %v", out, err)
	}
	if out, err = h.run(ctx, "chat", "send", "0xfriend", "--meme", "1"); err != nil || !strings.Contains(out, "shared a meme") {
		t.Fatalf("send meme = %q, %v", out, err)
	}
	if _, err = h.run(ctx, "chat", "send", "0xfriend"); err == nil {
		t.Fatal("send without content should fail")
	}

	if out, err = h.run(ctx, "chat", "list"); err != nil || !strings.Contains(out, "0xfriend") || !strings.Contains(out, "2 unread") {
		t.Fatalf("list = %q, %v", out, err)
	}

	watchCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	out, err = h.run(watchCtx, "chat", "watch", "0xfriend", "--interval", "20ms")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if strings.Count(out, "you: ") != 2 {
		t.Fatalf("watch should print each message once:\n%s", out)
	}
}
