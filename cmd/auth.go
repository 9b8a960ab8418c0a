package cmd

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/notetakerd/credentials"
)

// Auth command flags.
var (
	authKey            string
	authNonInteractive bool
)

// AuthCmd represents the auth command group.
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage vendor API keys",
	Long: `Manage the vendor API keys the daemon uses.

Keys are stored encrypted at rest in ~/.notetakerd/credentials.yaml. The
encryption key lives in the system keyring; for CI set NTK_ENCRYPTION_KEY
to a 64-character hex string instead.

Services:
  recall        Recall.ai API key
  meeting_baas  Meeting BaaS API key
  openai        OpenAI API key

Environment variables (NTK_RECALL_API_KEY, NTK_MEETING_BAAS_API_KEY,
NTK_OPENAI_API_KEY) take precedence over stored keys.`,
}

// authSetCmd stores a vendor API key.
var authSetCmd = &cobra.Command{
	Use:   "set <service>",
	Short: "Store an API key for a service",
	Long: `Store an API key for one of the vendor services.

Examples:
  # Prompt for the key (not echoed)
  notetakerd auth set recall

  # Non-interactive, key from flag
  notetakerd auth set openai --key sk-abc123... --non-interactive`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

// authShowCmd displays stored keys, masked.
var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored API keys (masked)",
	RunE:  runAuthShow,
}

// authClearCmd removes all stored keys.
var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored API keys",
	Long: `Remove all stored API keys from the local credential store.

Environment variables are not affected.`,
	RunE: runAuthClear,
}

func init() {
	authSetCmd.Flags().StringVar(&authKey, "key", "", "API key value (prompted if omitted)")
	authSetCmd.Flags().BoolVar(&authNonInteractive, "non-interactive", false, "Fail instead of prompting for input")

	AuthCmd.AddCommand(authSetCmd)
	AuthCmd.AddCommand(authShowCmd)
	AuthCmd.AddCommand(authClearCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	service := strings.ToLower(args[0])

	validService := false
	for _, s := range credentials.Services() {
		if service == s {
			validService = true
			break
		}
	}
	if !validService {
		return fmt.Errorf("unknown service %q (valid: %s)", service, strings.Join(credentials.Services(), ", "))
	}

	key := authKey
	if key == "" {
		if authNonInteractive {
			return errors.New("--key is required in non-interactive mode")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "API key for %s: ", service)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("reading key: %w", err)
		}
		key = strings.TrimSpace(string(raw))
	}
	if key == "" {
		return errors.New("API key is empty")
	}

	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	if err := store.SetKey(service, key); err != nil {
		return fmt.Errorf("storing key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s API key (%s)\n", service, credentials.MaskCredential(key))
	fmt.Fprintf(cmd.OutOrStdout(), "Encryption key storage: %s\n", store.KeyProviderDescription())
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	creds, err := store.GetActiveCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	out := cmd.OutOrStdout()
	path, _ := credentials.CredentialsPath()
	fmt.Fprintf(out, "Credentials file: %s\n", path)

	for _, service := range credentials.Services() {
		key, err := creds.Get(service)
		if err != nil {
			return err
		}
		display := "(not set)"
		if key != "" {
			display = credentials.MaskCredential(key)
		}
		fmt.Fprintf(out, "  %-13s %s\n", service+":", display)
	}
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}

	if !store.Exists() {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored credentials.")
		return nil
	}

	if err := store.Delete(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Stored credentials removed.")
	return nil
}
