package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/4xmen/memeboard/internal/telemetry"
	"github.com/4xmen/memeboard/pkg/api"
	"github.com/4xmen/memeboard/pkg/state"
)

const defaultAPIURL = "http://localhost:8000"

var errNotLoggedIn = errors.New("not logged in. run memectl login")

// cli is the state shared by every subcommand.
type cli struct {
	home   string
	apiURL string

	out      io.Writer
	auth     *state.AuthStore
	client   *api.Client
	shutdown func(context.Context) error
}

func Execute() error {
	return newRootCmd(os.Stdout).Execute()
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out, auth: state.NewAuthStore()}

	root := &cobra.Command{
		Use:          "memectl",
		Short:        "Terminal client for memeboard",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.shutdown == nil {
				return nil
			}
			return c.shutdown(context.Background())
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&c.home, "home", "", "config dir (default ~/.memectl)")
	root.PersistentFlags().StringVar(&c.apiURL, "api", "", "API base URL (default $MEMEBOARD_API_URL or "+defaultAPIURL+")")

	root.AddCommand(
		registerCmd(c), loginCmd(c), logoutCmd(c), whoamiCmd(c),
		feedCmd(c), likeCmd(c, true), likeCmd(c, false), uploadCmd(c),
		followCmd(c, true), followCmd(c, false),
		chatCmd(c),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	if c.home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.home = filepath.Join(dir, ".memectl")
	}
	if err := os.MkdirAll(c.home, 0o700); err != nil {
		return err
	}

	sess, err := loadSession(c.sessionPath())
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.User != nil {
		c.auth.SetSession(sess.User, sess.Token)
	}

	url := c.apiURL
	if url == "" {
		url = os.Getenv("MEMEBOARD_API_URL")
	}
	if url == "" {
		url = sess.APIURL
	}
	if url == "" {
		url = defaultAPIURL
	}
	c.apiURL = url

	opts := []api.Option{api.WithToken(sess.Token)}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := telemetry.Init(ctx, "memectl", "cli", endpoint)
		if err != nil {
			return err
		}
		c.shutdown = shutdown
		opts = append(opts, api.WithTracing())
	}
	c.client = api.New(url, opts...)
	return nil
}

func (c *cli) sessionPath() string {
	return filepath.Join(c.home, "session.json")
}

// saveSession writes the current auth state next to the API URL it belongs to.
func (c *cli) saveSession() error {
	snap := c.auth.Snapshot()
	return writeSession(c.sessionPath(), session{
		APIURL: c.apiURL,
		Token:  snap.Token,
		User:   snap.User,
	})
}

// me returns the logged in user's wallet.
func (c *cli) me() (string, error) {
	snap := c.auth.Snapshot()
	if !snap.LoggedIn() {
		return "", errNotLoggedIn
	}
	return snap.User.WalletAddress, nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
