package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/4xmen/memeboard/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLoginStoresTokenAndLogoutClearsIt(t *testing.T) {
	var gotAuth []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/login":
			var req models.LoginRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Email != "doge@example.com" || req.Password != "password123" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
				return
			}
			writeJSON(w, http.StatusOK, models.AuthResponse{Token: "tok-1", User: &models.User{ID: 1, WalletAddress: "0xabc"}})
		case "/auth/me":
			writeJSON(w, http.StatusOK, models.User{ID: 1, WalletAddress: "0xabc"})
		case "/auth/logout":
			writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	resp, err := c.Login(ctx, "doge@example.com", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.User.WalletAddress != "0xabc" || c.Token() != "tok-1" {
		t.Fatalf("resp = %+v token = %q", resp, c.Token())
	}

	if _, err := c.Me(ctx); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if c.Token() != "" {
		t.Fatalf("token after logout = %q", c.Token())
	}

	want := []string{"", "Bearer tok-1", "Bearer tok-1"}
	if strings.Join(gotAuth, "|") != strings.Join(want, "|") {
		t.Fatalf("Authorization headers = %q, want %q", gotAuth, want)
	}
}

func TestErrorResponses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/memes/7":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Meme not found"})
		case "/auth/login":
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func() error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "server message",
			call:       func() error { _, err := c.GetMeme(ctx, 7, ""); return err },
			wantStatus: http.StatusNotFound,
			wantMsg:    "Meme not found",
		},
		{
			name:       "unauthorized",
			call:       func() error { _, err := c.Login(ctx, "a@b.c", "x"); return err },
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "invalid email or password",
		},
		{
			name:       "status text fallback",
			call:       func() error { _, err := c.ListUsers(ctx); return err },
			wantStatus: http.StatusBadGateway,
			wantMsg:    "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.StatusCode != tt.wantStatus || apiErr.Message != tt.wantMsg {
				t.Fatalf("err = %+v", apiErr)
			}
			if IsNotFound(err) != (tt.wantStatus == http.StatusNotFound) {
				t.Fatalf("IsNotFound mismatch for %d", tt.wantStatus)
			}
		})
	}

	if c.Token() != "" {
		t.Fatal("failed login must not store a token")
	}
}

func TestGetMemesQuery(t *testing.T) {
	var gotQuery []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = append(gotQuery, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, []models.Meme{{ID: 1, Caption: "Doge"}})
	})
	ctx := context.Background()

	memes, err := c.GetMemes(ctx, MemeQuery{Page: 2, Limit: 20, Viewer: "0xabc"})
	if err != nil || len(memes) != 1 || memes[0].Caption != "Doge" {
		t.Fatalf("GetMemes = %+v, %v", memes, err)
	}
	c.GetMemes(ctx, MemeQuery{Page: 3})

	if gotQuery[0] != "limit=20&page=2&viewer=0xabc" {
		t.Fatalf("query = %q", gotQuery[0])
	}
	if gotQuery[1] != "" {
		t.Fatalf("page without limit should send no query, got %q", gotQuery[1])
	}
}

func TestLikeSendsUserID(t *testing.T) {
	type call struct {
		method string
		body   string
	}
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, strings.TrimSpace(string(raw))})
		writeJSON(w, http.StatusOK, models.Meme{ID: 3, Likes: 4, IsLiked: r.Method == http.MethodPost})
	})
	ctx := context.Background()

	meme, err := c.LikeMeme(ctx, 3, "0xabc")
	if err != nil || meme.Likes != 4 || !meme.IsLiked {
		t.Fatalf("LikeMeme = %+v, %v", meme, err)
	}
	if _, err := c.UnlikeMeme(ctx, 3, ""); err != nil {
		t.Fatalf("UnlikeMeme: %v", err)
	}

	if calls[0].method != http.MethodPost || calls[0].body != `{"user_id":"0xabc"}` {
		t.Fatalf("like call = %+v", calls[0])
	}
	if calls[1].method != http.MethodDelete || calls[1].body != "" {
		t.Fatalf("anonymous unlike call = %+v", calls[1])
	}
}

func TestUploadMemeMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/memes/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image or image_url is required"})
			return
		}
		data, _ := io.ReadAll(file)
		writeJSON(w, http.StatusOK, models.Meme{
			ID:        9,
			Caption:   r.FormValue("caption"),
			Tags:      r.FormValue("tags"),
			Image:     header.Filename + ":" + string(data),
			MediaType: r.FormValue("media_type"),
		})
	})

	meme, err := c.UploadMeme(context.Background(), Upload{
		Caption:    "such wow",
		Tags:       "doge, shiba",
		EVMAddress: "0xabc",
		MediaType:  models.MediaTypeImage,
		ImageName:  "doge.png",
		Image:      strings.NewReader("pixels"),
	})
	if err != nil {
		t.Fatalf("UploadMeme: %v", err)
	}
	if meme.Caption != "such wow" || meme.Tags != "doge, shiba" || meme.Image != "doge.png:pixels" || meme.MediaType != "image" {
		t.Fatalf("meme = %+v", meme)
	}
}

func TestPathSegmentsAreEscaped(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, []models.Message{})
	})

	if _, err := c.GetMessages(context.Background(), "0xa", "b/c"); err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if gotPath != "/messages/0xa/b%2Fc" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestMessagesAndFollows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/messages/send":
			var req models.SendMessageRequest
			json.NewDecoder(r.Body).Decode(&req)
			writeJSON(w, http.StatusOK, models.Message{ID: 5, SenderID: req.SenderID, ReceiverID: req.ReceiverID, Content: req.Content, ClientMessageID: req.ClientMessageID})
		case r.Method == http.MethodPut && r.URL.Path == "/messages/read/0xa/0xb":
			writeJSON(w, http.StatusOK, models.MarkReadResponse{MarkedCount: 2})
		case r.URL.Path == "/messages/conversations/0xa":
			writeJSON(w, http.StatusOK, []models.Conversation{{ID: "0xa_0xb", OtherUserID: "0xb", UnreadCount: 2}})
		case r.URL.Path == "/follow/check/0xa/0xb":
			writeJSON(w, http.StatusOK, models.FollowStatus{IsFollowing: true})
		case r.Method == http.MethodDelete && r.URL.Path == "/follow":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not following"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	msg, err := c.SendMessage(ctx, models.SendMessageRequest{
		SenderID: "0xa", ReceiverID: "0xb", Content: models.TextContent("gm"), ClientMessageID: "c1",
	})
	if err != nil || msg.ID != 5 || msg.ClientMessageID != "c1" || msg.Content.Preview() != "gm" {
		t.Fatalf("SendMessage = %+v, %v", msg, err)
	}

	convs, err := c.GetConversations(ctx, "0xa")
	if err != nil || len(convs) != 1 || convs[0].UnreadCount != 2 {
		t.Fatalf("GetConversations = %+v, %v", convs, err)
	}

	if n, err := c.MarkRead(ctx, "0xa", "0xb"); err != nil || n != 2 {
		t.Fatalf("MarkRead = %d, %v", n, err)
	}

	if ok, err := c.IsFollowing(ctx, "0xa", "0xb"); err != nil || !ok {
		t.Fatalf("IsFollowing = %v, %v", ok, err)
	}
	if err := c.Unfollow(ctx, "0xa", "0xb"); !IsNotFound(err) {
		t.Fatalf("Unfollow err = %v, want 404", err)
	}
}

func TestTimeoutOption(t *testing.T) {
	c := New("http://example.invalid", WithTimeout(time.Second), WithToken("abc"), WithTracing())
	if c.http.Timeout != time.Second {
		t.Fatalf("timeout = %v", c.http.Timeout)
	}
	if c.http.Transport == nil {
		t.Fatal("tracing should install a transport")
	}
	if c.Token() != "abc" {
		t.Fatalf("token = %q", c.Token())
	}
	if New("http://x").http.Timeout != DefaultTimeout {
		t.Fatal("default timeout not applied")
	}
}
