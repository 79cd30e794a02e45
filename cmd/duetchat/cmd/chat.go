package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duetapp/duetchat/internal/api"
	"github.com/duetapp/duetchat/internal/chat"
	"github.com/duetapp/duetchat/internal/config"
	"github.com/duetapp/duetchat/internal/pubsub"
	"github.com/duetapp/duetchat/internal/render"
	"github.com/duetapp/duetchat/internal/upload"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session with your partner.

Messages you type are sent as you press enter. Lines starting with a slash
are commands:

  /file <path>   upload the file and send it as an attachment
  /quit          leave the session

The session does not reconnect: if the connection drops, run the command
again.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	apiClient := api.New(cfg.APIBaseURL, cfg.Token)
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	console := render.NewConsole(bus, cfg.UserID, os.Stdout)
	if err := console.Start(ctx); err != nil {
		return err
	}

	session := chat.NewSession(chat.Dependencies{
		API:       apiClient,
		Publisher: bus,
		WSBaseURL: cfg.WSBaseURL,
		Token:     cfg.Token,
		UserID:    cfg.UserID,
		PartnerID: cfg.PartnerID,
	})
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Close()

	console.PrintHistory(session.State().Messages())

	uploader := upload.New(apiClient)
	go readInput(ctx, cancel, session, uploader, os.Stdin)

	select {
	case <-ctx.Done():
	case <-session.Done():
		fmt.Fprintln(os.Stderr, "Connection closed. Run `duetchat chat` to reconnect.")
	}
	return nil
}

// chatSession is the part of the session the input loop drives.
type chatSession interface {
	SendText(text string)
	SendWithAttachment(text string, attachmentID int64)
}

// fileUploader runs the attachment flow for a local file.
type fileUploader interface {
	Upload(ctx context.Context, path string) (api.Media, error)
}

// readInput forwards input lines to the session until the context ends.
func readInput(ctx context.Context, cancel context.CancelFunc, session chatSession, uploader fileUploader, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case line == "/quit":
			cancel()
			return

		case strings.HasPrefix(line, "/file "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
			media, err := uploader.Upload(ctx, path)
			if err != nil {
				// The file on disk is untouched; the user can fix the
				// problem and retry the same command.
				fmt.Fprintf(os.Stderr, "Upload failed: %v\nNothing was sent; try again.\n", err)
				continue
			}
			session.SendWithAttachment("", media.ID)

		default:
			// Line-buffered input gives no keystroke signal, so no typing
			// indicator precedes the send.
			session.SendText(line)
		}
	}
}
