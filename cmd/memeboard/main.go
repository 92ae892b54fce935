package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/4xmen/memeboard/internal/auth"
	"github.com/4xmen/memeboard/internal/db"
	"github.com/4xmen/memeboard/internal/events"
	"github.com/4xmen/memeboard/internal/handlers"
	"github.com/4xmen/memeboard/internal/metrics"
	"github.com/4xmen/memeboard/internal/push"
	"github.com/4xmen/memeboard/internal/storage"
	"github.com/4xmen/memeboard/internal/telemetry"
	"github.com/4xmen/memeboard/internal/ws"
	"github.com/4xmen/memeboard/pkg/config"
)

// rateLimitMiddleware limits per client IP. name keeps limiters that share a
// store from sharing counters.
func rateLimitMiddleware(name string, limiterInstance *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiterContext, err := limiterInstance.Get(c.Request.Context(), name+":"+c.ClientIP())
		if err != nil {
			log.Printf("rate limiter error limiter=%s ip=%s error=%v", name, c.ClientIP(), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiter error"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiterContext.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", limiterContext.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", limiterContext.Reset))

		if limiterContext.Reached {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w responseBodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func serverErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		blw := &responseBodyWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Printf(
				"HTTP %d %s %s ip=%s duration=%s errors=%q response=%q",
				c.Writer.Status(),
				c.Request.Method,
				c.Request.URL.Path,
				c.ClientIP(),
				time.Since(start).Truncate(time.Millisecond),
				c.Errors.ByType(gin.ErrorTypeAny).String(),
				strings.TrimSpace(blw.body.String()),
			)
		}
	}
}

func panicRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf(
			"panic recovered method=%s path=%s ip=%s error=%v\n%s",
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			recovered,
			debug.Stack(),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

func corsMiddleware(origins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origins)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := runServer(cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runCommand(cfg *config.Config, args []string) error {
	command := args[0]

	switch command {
	case "status":
		return runStatus(cfg, os.Stdout, args[1:])
	case "migrate":
		return runMigrate(cfg, os.Stdout, args[1:])
	case "seed":
		return runSeed(cfg, os.Stdout, args[1:])
	case "vapid":
		return runVAPID(os.Stdout)
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  memeboard                    Start the API server")
	fmt.Fprintln(out, "  memeboard status [--json]    Show application statistics")
	fmt.Fprintln(out, "  memeboard migrate recount [--dry-run] [--database PATH]")
	fmt.Fprintln(out, "                               Recompute like, comment and follow counters")
	fmt.Fprintln(out, "  memeboard seed [--users N] [--memes N]")
	fmt.Fprintln(out, "                               Insert fake users and memes")
	fmt.Fprintln(out, "  memeboard vapid              Generate a VAPID key pair for web push")
}

// newLimiterStore shares rate limit counters through redis when configured so
// several instances enforce one budget.
func newLimiterStore(redisURL string) (limiter.Store, func() error, error) {
	if redisURL == "" {
		return memory.NewStore(), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "memeboard:limiter"})
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	log.Printf("rate limits stored in redis addr=%s", opts.Addr)
	return store, client.Close, nil
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	conn := database.GetConn()

	if cfg.SeedDemo {
		seeded, err := db.SeedDemo(conn)
		if err != nil {
			return err
		}
		if seeded {
			log.Printf("seeded demo memes")
		}
	}

	if err := handlers.RegisterValidators(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(ctx, "memeboard", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	m := metrics.New()
	publisher := m.Publisher(events.New(cfg.KafkaBrokers, cfg.KafkaTopic))
	defer publisher.Close()

	limiterStore, closeLimiter, err := newLimiterStore(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer closeLimiter()

	hub := ws.NewHub()
	go hub.Run()

	notifier := push.NewNotifier(conn, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	if notifier == nil {
		log.Printf("web push disabled: VAPID keys not configured")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := newRouter(routerDeps{
		cfg:          cfg,
		db:           conn,
		authSvc:      auth.NewWithTokenTTL(conn, cfg.JWTSecret, cfg.TokenTTL),
		storage:      store,
		publisher:    publisher,
		hub:          hub,
		notifier:     notifier,
		metrics:      m,
		limiterStore: limiterStore,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", cfg.Port),
		Handler:           otelhttp.NewHandler(router, "memeboard"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s storage=%s", srv.Addr, cfg.StorageType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
