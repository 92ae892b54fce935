package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/4xmen/memeboard/internal/events"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/users/:wallet", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, wallet := range []string{"0xaaa", "0xbbb"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/users/"+wallet, nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/nowhere", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/users/:wallet", "200")); got != 2 {
		t.Fatalf("requests for route = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched requests = %v, want 1", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	pub := m.Publisher(events.Nop{})
	if err := pub.Publish(context.Background(), events.Event{Type: events.MemeLiked}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `memeboard_events_total{type="meme.liked"} 1`) {
		t.Fatalf("events counter missing from output:\n%s", w.Body.String())
	}
}
