// Package main provides the notetakerd entry point.
// notetakerd sends note-taking bots into meetings, collects their
// transcripts, and turns them into follow-up emails and social posts.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetakerd/cmd"
	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/buildinfo"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "notetakerd",
	Short: "Meeting notetaker daemon",
	Long: `notetakerd sends note-taking bots into meetings, collects their
transcripts, and turns them into follow-up emails and social posts.

The daemon schedules bots against calendar events: when an event's join
window opens a bot is dispatched through the configured vendor (Recall.ai
or Meeting BaaS), the transcript is polled in after the meeting ends, and
the vendor copy is deleted once the transcript is safely stored.

COMMON WORKFLOWS:
  Run the daemon:    notetakerd serve
  Prepare database:  notetakerd db migrate
  Store API keys:    notetakerd auth set recall
  Flag an event:     notetakerd events request --event <id> --user <id>
  Send a bot now:    notetakerd bot send --event <id> --user <id>

DISCOVERY:
  notetakerd <command> --help   Subcommands, flags, and examples
  notetakerd db status          Migration state
  notetakerd auth show          Stored vendor keys (masked)`,
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of notetakerd.

Examples:
  notetakerd version
  notetakerd version --output-json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("notetakerd")

		if versionOutputJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "notetakerd version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages daemon configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage daemon configuration",
	Long:  `View and modify the notetakerd configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after file and environment overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		configPath, _ := config.ConfigPath()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:          %s\n", configPath)
		fmt.Fprintf(out, "  Provider:             %s\n", cfg.Provider)
		fmt.Fprintf(out, "  Recall region:        %s\n", cfg.RecallRegion)
		fmt.Fprintf(out, "  Bot display name:     %s\n", cfg.BotDisplayName)
		fmt.Fprintf(out, "  Vendor timeout:       %s\n", cfg.VendorTimeout)
		fmt.Fprintf(out, "  Dispatch interval:    %s\n", cfg.Scheduler.DispatchInterval)
		fmt.Fprintf(out, "  Poll interval:        %s\n", cfg.Scheduler.PollInterval)
		fmt.Fprintf(out, "  Auto-post interval:   %s\n", cfg.Scheduler.AutoPostInterval)
		fmt.Fprintf(out, "  Teardown grace delay: %s\n", cfg.Scheduler.TeardownGraceDelay)
		fmt.Fprintf(out, "  Redis address:        %s\n", cfg.Redis.Addr)
		fmt.Fprintf(out, "  Log level:            %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "  Log JSON:             %t\n", cfg.LogJSON)

		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(cmd.OutOrStdout(), "Use 'notetakerd config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := defaultCfg.Save(); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Provider:       %s\n", defaultCfg.Provider)
		fmt.Fprintf(out, "  Redis address:  %s\n", defaultCfg.Redis.Addr)

		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cmd.ServeCmd)
	rootCmd.AddCommand(cmd.AuthCmd)
	rootCmd.AddCommand(cmd.DBCmd)
	rootCmd.AddCommand(cmd.BotCmd)
	rootCmd.AddCommand(cmd.EventsCmd)
	rootCmd.AddCommand(cmd.SettingsCmd)
	rootCmd.AddCommand(cmd.SocialCmd)
	rootCmd.AddCommand(cmd.AutomationsCmd)
	rootCmd.AddCommand(cmd.ContentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
