package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/4xmen/memeboard/pkg/feed"
	"github.com/4xmen/memeboard/pkg/models"
	"github.com/4xmen/memeboard/pkg/state"
)

func (c *cli) feedController() *feed.Controller {
	ctl := feed.New(c.client, state.NewFeedStore())
	if snap := c.auth.Snapshot(); snap.LoggedIn() {
		ctl.SetViewer(snap.User.WalletAddress)
	}
	return ctl
}

func feedCmd(c *cli) *cobra.Command {
	var page, limit int
	var following bool
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the meme feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl := c.feedController()
			ctl.SetPageSize(limit)
			ctx := cmd.Context()

			if following {
				me, err := c.me()
				if err != nil {
					return err
				}
				if err := ctl.LoadFollowing(ctx, me); err != nil {
					return err
				}
			} else {
				if err := ctl.Refresh(ctx); err != nil {
					return err
				}
				for ctl.Store().Snapshot().Page < page && ctl.Store().Snapshot().HasMore {
					if err := ctl.LoadMore(ctx); err != nil {
						return err
					}
				}
			}

			posts := ctl.Store().Snapshot().Posts
			if len(posts) == 0 {
				c.printf("no memes yet\n")
				return nil
			}
			for _, m := range posts {
				c.printMeme(m)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "pages", 1, "number of pages to load")
	cmd.Flags().IntVar(&limit, "limit", feed.DefaultPageSize, "memes per page")
	cmd.Flags().BoolVar(&following, "following", false, "show posts from users you follow")
	return cmd
}

func (c *cli) printMeme(m models.Meme) {
	heart := " "
	if m.IsLiked {
		heart = "*"
	}
	author := "anonymous"
	if m.User != nil {
		author = m.User.DisplayName()
	} else if m.EVMAddress != nil {
		author = *m.EVMAddress
	}
	c.printf("#%-5d %s %4d likes %3d comments  %s  by %s\n", m.ID, heart, m.Likes, m.CommentCount, m.Caption, author)
	if m.Tags != "" {
		c.printf("        tags: %s\n", m.Tags)
	}
	c.printf("        %s: %s\n", m.MediaType, m.Image)
}

// likeCmd builds "like" or "unlike". The command only fires when the meme is
// not already in the requested state.
func likeCmd(c *cli, like bool) *cobra.Command {
	use, done := "unlike", "unliked"
	if like {
		use, done = "like", "liked"
	}
	return &cobra.Command{
		Use:   use + " <meme-id>",
		Short: "Toggle a like on a meme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid meme id %q", args[0])
			}
			userID := ""
			if snap := c.auth.Snapshot(); snap.LoggedIn() {
				userID = snap.User.WalletAddress
			}

			ctx := cmd.Context()
			meme, err := c.client.GetMeme(ctx, id, userID)
			if err != nil {
				return err
			}
			ctl := c.feedController()
			ctl.Store().SetPosts([]models.Meme{*meme})

			if meme.IsLiked != like {
				if err := ctl.ToggleLike(ctx, id, userID); err != nil {
					return err
				}
			}
			post, _ := ctl.Store().Post(id)
			c.printf("%s #%d (%d likes)\n", done, id, post.Likes)
			return nil
		},
	}
}

func uploadCmd(c *cli) *cobra.Command {
	var form feed.UploadForm
	var file string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Post a meme from a file or an image URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				form.Image = f
				form.ImageName = filepath.Base(file)
			}
			if !form.CanSubmit() {
				return fmt.Errorf("--file or --url is required")
			}
			if snap := c.auth.Snapshot(); snap.LoggedIn() && form.EVMAddress == "" {
				form.EVMAddress = snap.User.WalletAddress
			}

			meme, err := c.feedController().Submit(cmd.Context(), form)
			if err != nil {
				return err
			}
			c.printf("uploaded #%d\n", meme.ID)
			c.printMeme(*meme)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "image or video file to upload")
	cmd.Flags().StringVar(&form.ImageURL, "url", "", "image URL to post instead of a file")
	cmd.Flags().StringVar(&form.Caption, "caption", "", "caption")
	cmd.Flags().StringVar(&form.Tags, "tags", "", "comma separated tags")
	cmd.Flags().StringVar(&form.MediaType, "media-type", "", "image or video (guessed from the file when empty)")
	cmd.Flags().StringVar(&form.EVMAddress, "evm-address", "", "creator address (default: your wallet)")
	return cmd
}

func followCmd(c *cli, follow bool) *cobra.Command {
	use := "unfollow"
	if follow {
		use = "follow"
	}
	return &cobra.Command{
		Use:   use + " <wallet>",
		Short: "Follow or unfollow a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := c.me()
			if err != nil {
				return err
			}
			if follow {
				err = c.client.Follow(cmd.Context(), me, args[0])
			} else {
				err = c.client.Unfollow(cmd.Context(), me, args[0])
			}
			if err != nil {
				return err
			}
			c.printf("%sed %s\n", use, args[0])
			return nil
		},
	}
}
