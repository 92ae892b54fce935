package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/4xmen/memeboard/pkg/chat"
	"github.com/4xmen/memeboard/pkg/models"
	"github.com/4xmen/memeboard/pkg/poll"
	"github.com/4xmen/memeboard/pkg/state"
)

func chatCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "List conversations, watch a thread or send a message",
	}
	cmd.AddCommand(chatListCmd(c), chatWatchCmd(c), chatSendCmd(c))
	return cmd
}

func chatListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := c.me()
			if err != nil {
				return err
			}
			convs, err := c.client.GetConversations(cmd.Context(), me)
			if err != nil {
				return err
			}
			if len(convs) == 0 {
				c.printf("no conversations\n")
				return nil
			}
			for _, conv := range convs {
				name := conv.OtherUserID
				if conv.OtherUserName != nil {
					name = *conv.OtherUserName
				}
				preview := ""
				if conv.LastMessage != nil {
					preview = conv.LastMessage.Content.Preview()
				}
				c.printf("%-42s %3d unread  %s\n", name, conv.UnreadCount, preview)
			}
			return nil
		},
	}
}

func chatWatchCmd(c *cli) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <wallet>",
		Short: "Follow a conversation until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := c.me()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := chat.New(c.client, state.NewMessageStore())
			defer svc.Close()
			if err := svc.OpenConversation(ctx, models.ConversationID(me, args[0]), interval); err != nil {
				return err
			}
			c.watchThread(ctx, svc.Store(), me)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", poll.DefaultInterval, "polling interval")
	return cmd
}

// watchThread prints messages as the poller brings them in, until ctx is done.
func (c *cli) watchThread(ctx context.Context, store *state.MessageStore, me string) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var version uint64
	var lastID int64
	for {
		if v := store.Version(); v != version {
			version = v
			for _, m := range store.Snapshot().CurrentMessages {
				if m.ID == 0 || m.ID <= lastID {
					continue
				}
				lastID = m.ID
				c.printMessage(m, me)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *cli) printMessage(m models.Message, me string) {
	from := m.SenderID
	if from == me {
		from = "you"
	}
	c.printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), from, m.Content.Preview())
}

func chatSendCmd(c *cli) *cobra.Command {
	var memeID, postID int64
	var image, video string
	cmd := &cobra.Command{
		Use:   "send <wallet> [text]",
		Short: "Send a message",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := c.me()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			svc := chat.New(c.client, state.NewMessageStore())
			defer svc.Close()
			// Sending only needs the thread open, not polled
			if err := svc.OpenConversation(ctx, models.ConversationID(me, args[0]), time.Hour); err != nil {
				return err
			}

			var msg *models.Message
			switch {
			case memeID > 0:
				msg, err = svc.SendMeme(ctx, memeID)
			case postID > 0:
				msg, err = svc.SendPost(ctx, postID)
			case image != "":
				msg, err = svc.SendImage(ctx, image)
			case video != "":
				msg, err = svc.SendVideo(ctx, video)
			case len(args) == 2:
				msg, err = svc.SendText(ctx, strings.TrimSpace(args[1]))
			default:
				return fmt.Errorf("nothing to send. pass text, --meme, --post, --image or --video")
			}
			if err != nil {
				return err
			}
			c.printMessage(*msg, me)
			return nil
		},
	}
	cmd.Flags().Int64Var(&memeID, "meme", 0, "share a meme by id")
	cmd.Flags().Int64Var(&postID, "post", 0, "share a post by id")
	cmd.Flags().StringVar(&image, "image", "", "send an image URL")
	cmd.Flags().StringVar(&video, "video", "", "send a video URL")
	return cmd
}
