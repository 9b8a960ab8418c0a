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

// Automations command flags.
var (
	automationUserID      string
	automationName        string
	automationPlatform    string
	automationDescription string
	automationExample     string
)

// AutomationsCmd represents the automations command group.
var AutomationsCmd = &cobra.Command{
	Use:   "automations",
	Short: "Manage post-generation automations",
	Long: `Manage the instruction templates used when generating social posts.

When a meeting's posts are generated, the first active automation whose
platform matches the target connection supplies the instructions; without
one, a built-in prompt for that platform is used.`,
}

var automationsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an automation",
	Long: `Create an active automation for a user.

The description is the instruction given to the generator alongside the
meeting transcript. An optional example shows the desired output style.

Example:
  notetakerd automations add --user user-42 --name "Weekly recap" \
    --platform linkedin --description "Summarize the key decisions in a confident tone"`,
	RunE: runAutomationsAdd,
}

var automationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's active automations",
	RunE:  runAutomationsList,
}

func init() {
	automationsAddCmd.Flags().StringVar(&automationUserID, "user", "", "User ID (required)")
	automationsAddCmd.Flags().StringVar(&automationName, "name", "", "Automation name (required)")
	automationsAddCmd.Flags().StringVar(&automationPlatform, "platform", "", "Target platform (required)")
	automationsAddCmd.Flags().StringVar(&automationDescription, "description", "", "Generation instructions (required)")
	automationsAddCmd.Flags().StringVar(&automationExample, "example", "", "Example output")
	automationsAddCmd.MarkFlagRequired("user")
	automationsAddCmd.MarkFlagRequired("name")
	automationsAddCmd.MarkFlagRequired("platform")
	automationsAddCmd.MarkFlagRequired("description")

	automationsListCmd.Flags().StringVar(&automationUserID, "user", "", "User ID (required)")
	automationsListCmd.MarkFlagRequired("user")

	AutomationsCmd.AddCommand(automationsAddCmd)
	AutomationsCmd.AddCommand(automationsListCmd)
}

func runAutomationsAdd(cmd *cobra.Command, args []string) error {
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

	automations := store.NewAutomationRepository(pool, logger)

	a := &store.Automation{
		UserID:      automationUserID,
		Name:        automationName,
		Type:        "Generate post",
		Platform:    automationPlatform,
		Description: automationDescription,
		IsActive:    true,
	}
	if automationExample != "" {
		a.Example = &automationExample
	}

	id, err := automations.Create(ctx, a)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created automation %s (%s, %s)\n", id, a.Name, a.Platform)
	return nil
}

func runAutomationsList(cmd *cobra.Command, args []string) error {
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

	automations := store.NewAutomationRepository(pool, logger)

	list, err := automations.ListActiveByUser(ctx, automationUserID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No active automations for %s\n", automationUserID)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-38s %-12s %-24s\n", "ID", "PLATFORM", "NAME")
	for _, a := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%-38s %-12s %-24s\n", a.ID, a.Platform, a.Name)
	}
	return nil
}
