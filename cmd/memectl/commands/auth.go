package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/4xmen/memeboard/pkg/models"
)

func registerCmd(c *cli) *cobra.Command {
	var req models.AuthRegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			c.auth.SetSession(resp.User, resp.Token)
			if err := c.saveSession(); err != nil {
				return err
			}
			c.printf("registered %s (%s)\n", resp.User.DisplayName(), resp.User.WalletAddress)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "username (3-50 characters)")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (at least 8 characters)")
	cmd.Flags().StringVar(&req.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&req.WalletAddress, "wallet", "", "wallet address (derived from the email when empty)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			c.auth.SetSession(resp.User, resp.Token)
			if err := c.saveSession(); err != nil {
				return err
			}
			c.printf("logged in as %s (%s)\n", resp.User.DisplayName(), resp.User.WalletAddress)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.me(); err != nil {
				return err
			}
			// The local session goes away even if the server call fails.
			logoutErr := c.client.Logout(cmd.Context())
			c.auth.Clear()
			if err := c.saveSession(); err != nil {
				return err
			}
			if logoutErr != nil {
				return fmt.Errorf("server logout: %w", logoutErr)
			}
			c.printf("logged out\n")
			return nil
		},
	}
}

func whoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.me(); err != nil {
				return err
			}
			user, err := c.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			c.auth.SetUser(user)
			if err := c.saveSession(); err != nil {
				return err
			}
			c.printf("%s\n", user.DisplayName())
			c.printf("  wallet    : %s\n", user.WalletAddress)
			c.printf("  followers : %d\n", user.FollowersCount)
			c.printf("  following : %d\n", user.FollowingCount)
			return nil
		},
	}
}
