// Command relaypoll follows one chat through the poll endpoints and prints
// the converged message list whenever it changes.
//
//	relaypoll -url http://localhost:8080 -token $TOKEN -user bob -chat <chat-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/models"
	"github.com/noteduco342/om-relay/internal/reconcile"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "relay base URL")
	token := flag.String("token", os.Getenv("RELAY_TOKEN"), "bearer token (default $RELAY_TOKEN)")
	user := flag.String("user", "", "viewer user id, used for unread counts")
	chatID := flag.String("chat", "", "chat id to follow")
	interval := flag.Duration("interval", reconcile.DefaultPollInterval, "poll interval")
	once := flag.Bool("once", false, "poll once and exit")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console"})

	if *chatID == "" {
		fmt.Fprintln(os.Stderr, "relaypoll: -chat is required")
		flag.Usage()
		os.Exit(2)
	}

	client := &reconcile.Client{BaseURL: *baseURL, Token: *token}
	store := reconcile.NewStore(*user)

	poll := func(context.Context) error {
		if n, err := client.CheckScheduled(); err != nil {
			logging.Debug().Err(err).Msg("scheduled check failed")
		} else if n > 0 {
			logging.Info().Int("dispatched", n).Msg("scheduled messages went out")
		}

		messages, err := client.Messages(*chatID)
		if err != nil {
			return err
		}
		if diff := store.Reconcile(*chatID, messages); !diff.Empty() {
			printState(store, *chatID, diff)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := poll(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "relaypoll:", err)
			os.Exit(1)
		}
		return
	}

	poller := reconcile.NewPoller(poll, reconcile.PollerConfig{Interval: *interval, Jitter: 0.2})
	_ = poller.Run(ctx)
}

func printState(store *reconcile.Store, chatID string, diff reconcile.Diff) {
	fmt.Printf("%s  +%d -%d ~%d  unread=%d\n",
		time.Now().Format("15:04:05"), diff.Added, diff.Removed, diff.Updated, store.Unread(chatID))
	for _, m := range store.Messages(chatID) {
		fmt.Printf("  %s %-7s %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), status(m), m.SenderID, m.Content)
	}
}

func status(m models.MessageResponse) string {
	if m.Status == "" {
		return string(models.StateSent)
	}
	return string(m.Status)
}
