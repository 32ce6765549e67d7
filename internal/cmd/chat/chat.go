package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/config"
	"github.com/chirino/chat-history/internal/history"
	"github.com/chirino/chat-history/internal/model"
	"github.com/chirino/chat-history/internal/session"
	"github.com/chirino/chat-history/internal/stores"
	"github.com/urfave/cli/v3"
)

// Command returns the chat sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	flags := append(config.StorageFlags(&cfg), config.HistoryFlags(&cfg)...)
	return &cli.Command{
		Name:  "chat",
		Usage: "Browse and append to the active user's conversations",
		Flags: flags,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List conversations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withService(ctx, &cfg, func(svc *history.Service) error {
						return printConversations(writer(cmd), svc.GetConversations())
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Print the history of a conversation",
				ArgsUsage: "<conversation-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Load every page instead of stopping at the minimum display count",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireID(cmd)
					if err != nil {
						return err
					}
					return withService(ctx, &cfg, func(svc *history.Service) error {
						return show(ctx, writer(cmd), svc, id, cmd.Bool("all"))
					})
				},
			},
			{
				Name:      "send",
				Usage:     "Append a message from the active user",
				ArgsUsage: "<conversation-id> <text...>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "sender",
						Usage: "Sender of the message",
						Value: config.LocalUserMarker,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireID(cmd)
					if err != nil {
						return err
					}
					text := strings.TrimSpace(strings.Join(cmd.Args().Tail(), " "))
					if text == "" {
						return fmt.Errorf("message text is required")
					}
					msg := model.Message{
						Sender:    cmd.String("sender"),
						Body:      text,
						Timestamp: time.Now().UTC().Format(time.RFC3339),
					}
					return withService(ctx, &cfg, func(svc *history.Service) error {
						return send(ctx, writer(cmd), svc, id, msg)
					})
				},
			},
		},
	}
}

func withService(ctx context.Context, cfg *config.Config, fn func(*history.Service) error) error {
	ctx = config.WithContext(ctx, cfg)
	st, err := stores.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("Failed to close stores", "err", err)
		}
	}()
	svc, err := history.New(ctx, session.New(cfg.UserID), st.Bundled, st.Local, history.Options{
		MaxMessagesPerPage: cfg.MaxMessagesPerPage,
		MinDisplayCount:    cfg.MinDisplayCount,
	})
	if err != nil {
		return err
	}
	return fn(svc)
}

func requireID(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return "", fmt.Errorf("conversation id is required")
	}
	return id, nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printConversations(w io.Writer, list []model.ConversationRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLAST MESSAGE")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.LastMessageDate)
	}
	return tw.Flush()
}

func show(ctx context.Context, w io.Writer, svc *history.Service, id string, all bool) error {
	record, err := svc.InitializeChatHistory(ctx, id, 0)
	if err != nil {
		return err
	}
	for all {
		loaded, err := svc.LoadMoreChatHistory(ctx, id)
		if err != nil {
			return err
		}
		if !loaded {
			break
		}
	}
	if all {
		record, _ = svc.GetConversation(id)
	}
	defer func() { _ = svc.Unload(id) }()

	fmt.Fprintf(w, "%s (%d of %d pages)\n", record.Name, record.PagesLoaded, record.Locator.Count())
	for i := len(record.LoadedPages) - 1; i >= 0; i-- {
		for _, m := range record.LoadedPages[i].Chats {
			fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp, m.Sender, m.Body)
		}
	}
	return nil
}

func send(ctx context.Context, w io.Writer, svc *history.Service, id string, msg model.Message) error {
	if _, err := svc.InitializeChatHistory(ctx, id, 1); err != nil {
		return err
	}
	result, err := svc.AppendMessage(ctx, id, msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "sent to %s (page %d", id, result.PageIndex)
	if result.NewPage {
		fmt.Fprint(w, ", new page")
	}
	fmt.Fprintln(w, ")")
	return nil
}
