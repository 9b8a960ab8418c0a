package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/credentials"
	"github.com/otherjamesbrown/notetakerd/pkg/botprovider"
	"github.com/otherjamesbrown/notetakerd/pkg/botservice"
	"github.com/otherjamesbrown/notetakerd/pkg/db"
	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/jobs"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

// Bot command flags.
var (
	botEventID string
	botUserID  string
)

// BotCmd represents the bot command group.
var BotCmd = &cobra.Command{
	Use:   "bot",
	Short: "Manage meeting bots",
}

// botSendCmd queues an immediate bot dispatch for an event.
var botSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a bot to a meeting now",
	Long: `Queue an immediate bot dispatch for an event, skipping the join window.

The event must belong to the given user and have a meeting link. The
dispatch itself is performed by the running daemon's job worker.

Examples:
  notetakerd bot send --event 1f0a... --user user-42`,
	RunE: runBotSend,
}

// botStatusCmd shows the bot state stored for an event.
var botStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the bot state for an event",
	RunE:  runBotStatus,
}

func init() {
	for _, c := range []*cobra.Command{botSendCmd, botStatusCmd} {
		c.Flags().StringVar(&botEventID, "event", "", "Event ID (required)")
		c.MarkFlagRequired("event")
	}
	botSendCmd.Flags().StringVar(&botUserID, "user", "", "Acting user ID (required)")
	botSendCmd.MarkFlagRequired("user")

	BotCmd.AddCommand(botSendCmd)
	BotCmd.AddCommand(botStatusCmd)
}

func runBotSend(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	redisClient := newRedisClient(cfg)
	defer redisClient.Close()

	credStore, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	creds, err := credStore.GetActiveCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	secrets := botprovider.Secrets{
		RecallAPIKey:      creds.RecallAPIKey,
		MeetingBaasAPIKey: creds.MeetingBaasAPIKey,
	}

	events := store.NewEventRepository(pool, logger)
	queue := jobs.NewQueue(redisClient, queueName, logger)
	getConfig := func() *config.Config { return cfg }
	providers := botservice.NewFactory(getConfig, secrets, logger)
	svc := botservice.NewService(events, queue, getConfig, providers, logger)

	if err := svc.SendBotManually(ctx, botEventID, botUserID); err != nil {
		switch {
		case errors.Is(err, nterrors.ErrNotFound):
			return fmt.Errorf("event %s not found", botEventID)
		case errors.Is(err, nterrors.ErrForbidden):
			return fmt.Errorf("event %s does not belong to user %s", botEventID, botUserID)
		default:
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Dispatch queued for event %s\n", botEventID)
	return nil
}

func runBotStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	events := store.NewEventRepository(pool, logger)
	event, err := events.GetByID(ctx, botEventID)
	if err != nil {
		if errors.Is(err, nterrors.ErrNotFound) {
			return fmt.Errorf("event %s not found", botEventID)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Event:      %s\n", event.Title)
	fmt.Fprintf(out, "Starts:     %s\n", event.StartTime.Format(time.RFC3339))
	fmt.Fprintf(out, "Requested:  %t\n", event.NotetakerRequested)
	if event.BotID == nil {
		fmt.Fprintln(out, "Bot:        none")
		return nil
	}
	fmt.Fprintf(out, "Bot:        %s (%s)\n", *event.BotID, valueOrDefault(event.BotProvider, "unknown provider"))
	fmt.Fprintf(out, "Status:     %s\n", valueOrDefault(event.BotStatus, "unknown"))
	fmt.Fprintf(out, "Transcript: %t\n", event.Transcription != nil)
	if event.TornDownAt != nil {
		fmt.Fprintf(out, "Torn down:  %s\n", event.TornDownAt.Format(time.RFC3339))
	}
	return nil
}
