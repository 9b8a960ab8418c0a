package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/db"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

// Settings command flags.
var (
	settingsUserID  string
	settingsMinutes int
)

// SettingsCmd represents the settings command group.
var SettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-user settings",
}

// settingsJoinCmd shows or sets a user's bot join lead time.
var settingsJoinCmd = &cobra.Command{
	Use:   "join-minutes",
	Short: "Show or set how many minutes before a meeting the bot joins",
	Long: `Show or set how many minutes before a meeting's start the bot joins.

Without --set, prints the current value. The value must not be negative;
users without an explicit setting use the default of ` + fmt.Sprint(store.DefaultJoinMinutesBefore) + ` minutes.

Examples:
  notetakerd settings join-minutes --user user-42
  notetakerd settings join-minutes --user user-42 --set 10`,
	RunE: runSettingsJoin,
}

func init() {
	settingsJoinCmd.Flags().StringVar(&settingsUserID, "user", "", "User ID (required)")
	settingsJoinCmd.Flags().IntVar(&settingsMinutes, "set", -1, "New join lead time in minutes")
	settingsJoinCmd.MarkFlagRequired("user")

	SettingsCmd.AddCommand(settingsJoinCmd)
}

func runSettingsJoin(cmd *cobra.Command, args []string) error {
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

	settings := store.NewSettingsRepository(pool, logger)

	if cmd.Flags().Changed("set") {
		if err := settings.SetJoinMinutes(ctx, settingsUserID, settingsMinutes); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Join lead time for %s set to %d minute(s)\n", settingsUserID, settingsMinutes)
		return nil
	}

	minutes, err := settings.GetJoinMinutes(ctx, settingsUserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Join lead time for %s: %d minute(s)\n", settingsUserID, minutes)
	return nil
}
