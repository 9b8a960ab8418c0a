package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/db"
	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

// Social command flags.
var (
	socialUserID    string
	socialPlatform  string
	socialToken     string
	socialProfileID string
	socialPageID    string
	socialPageToken string
	socialAutoPost  bool
	socialEnable    bool
	socialDisable   bool
)

// SocialCmd represents the social command group.
var SocialCmd = &cobra.Command{
	Use:   "social",
	Short: "Manage social publishing connections",
	Long: `Manage the social accounts that generated posts are published to.

Connections are stored per user and platform (` + store.PlatformLinkedIn + ` or ` + store.PlatformFacebook + `).
A connection with auto-post enabled publishes drafts immediately after
generation; without it, posts stay in draft status.`,
}

var socialConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Store or update a social connection",
	Long: `Store a social connection's publishing credentials.

LinkedIn connections need --token and --profile-id (the member URN id).
Facebook connections need --token plus --page-id and --page-token for the
page the posts go to. Connecting again for the same user and platform
replaces the stored credentials.

Examples:
  notetakerd social connect --user user-42 --platform linkedin --token "$TOKEN" --profile-id abc123
  notetakerd social connect --user user-42 --platform facebook --token "$TOKEN" --page-id 9001 --page-token "$PAGE_TOKEN" --auto-post`,
	RunE: runSocialConnect,
}

var socialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's social connections",
	RunE:  runSocialList,
}

var socialAutoPostCmd = &cobra.Command{
	Use:   "auto-post",
	Short: "Enable or disable automatic publishing for a connection",
	RunE:  runSocialAutoPost,
}

var socialDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove a social connection",
	RunE:  runSocialDisconnect,
}

func init() {
	socialConnectCmd.Flags().StringVar(&socialUserID, "user", "", "User ID (required)")
	socialConnectCmd.Flags().StringVar(&socialPlatform, "platform", "", "Platform: linkedin or facebook (required)")
	socialConnectCmd.Flags().StringVar(&socialToken, "token", "", "OAuth access token (required)")
	socialConnectCmd.Flags().StringVar(&socialProfileID, "profile-id", "", "LinkedIn member URN id")
	socialConnectCmd.Flags().StringVar(&socialPageID, "page-id", "", "Facebook page id")
	socialConnectCmd.Flags().StringVar(&socialPageToken, "page-token", "", "Facebook page access token")
	socialConnectCmd.Flags().BoolVar(&socialAutoPost, "auto-post", false, "Publish generated posts immediately")
	socialConnectCmd.MarkFlagRequired("user")
	socialConnectCmd.MarkFlagRequired("platform")
	socialConnectCmd.MarkFlagRequired("token")

	socialListCmd.Flags().StringVar(&socialUserID, "user", "", "User ID (required)")
	socialListCmd.MarkFlagRequired("user")

	socialAutoPostCmd.Flags().StringVar(&socialUserID, "user", "", "User ID (required)")
	socialAutoPostCmd.Flags().StringVar(&socialPlatform, "platform", "", "Platform (required)")
	socialAutoPostCmd.Flags().BoolVar(&socialEnable, "enable", false, "Turn auto-post on")
	socialAutoPostCmd.Flags().BoolVar(&socialDisable, "disable", false, "Turn auto-post off")
	socialAutoPostCmd.MarkFlagRequired("user")
	socialAutoPostCmd.MarkFlagRequired("platform")

	socialDisconnectCmd.Flags().StringVar(&socialUserID, "user", "", "User ID (required)")
	socialDisconnectCmd.Flags().StringVar(&socialPlatform, "platform", "", "Platform (required)")
	socialDisconnectCmd.MarkFlagRequired("user")
	socialDisconnectCmd.MarkFlagRequired("platform")

	SocialCmd.AddCommand(socialConnectCmd)
	SocialCmd.AddCommand(socialListCmd)
	SocialCmd.AddCommand(socialAutoPostCmd)
	SocialCmd.AddCommand(socialDisconnectCmd)
}

func validateSocialPlatform(platform string) error {
	switch platform {
	case store.PlatformLinkedIn, store.PlatformFacebook:
		return nil
	default:
		return fmt.Errorf("unknown platform %q (expected %s or %s)",
			platform, store.PlatformLinkedIn, store.PlatformFacebook)
	}
}

func runSocialConnect(cmd *cobra.Command, args []string) error {
	if err := validateSocialPlatform(socialPlatform); err != nil {
		return err
	}
	if socialPlatform == store.PlatformFacebook && (socialPageID == "" || socialPageToken == "") {
		return fmt.Errorf("facebook connections need --page-id and --page-token")
	}

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

	social := store.NewSocialRepository(pool, logger)

	verb := "Connected"
	if _, err := social.GetByUserAndPlatform(ctx, socialUserID, socialPlatform); err == nil {
		verb = "Updated"
	} else if !errors.Is(err, nterrors.ErrNotFound) {
		return err
	}

	conn := &store.SocialConnection{
		UserID:      socialUserID,
		Platform:    socialPlatform,
		AccessToken: socialToken,
		AutoPost:    socialAutoPost,
	}
	if socialProfileID != "" {
		conn.ProfileID = &socialProfileID
	}
	if socialPageID != "" {
		conn.PageID = &socialPageID
	}
	if socialPageToken != "" {
		conn.PageAccessToken = &socialPageToken
	}

	if err := social.Save(ctx, conn); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s for %s (auto-post: %t)\n",
		verb, socialPlatform, socialUserID, socialAutoPost)
	return nil
}

func runSocialList(cmd *cobra.Command, args []string) error {
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

	social := store.NewSocialRepository(pool, logger)

	conns, err := social.ListByUser(ctx, socialUserID)
	if err != nil {
		return err
	}
	if len(conns) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No social connections for %s\n", socialUserID)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-24s %-9s\n", "PLATFORM", "PROFILE", "AUTO-POST")
	for _, c := range conns {
		profile := "-"
		if c.ProfileName != nil && *c.ProfileName != "" {
			profile = *c.ProfileName
		}
		if c.Platform == store.PlatformFacebook && c.PageName != nil && *c.PageName != "" {
			profile = *c.PageName
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-24s %-9t\n", c.Platform, profile, c.AutoPost)
	}
	return nil
}

func runSocialAutoPost(cmd *cobra.Command, args []string) error {
	if socialEnable == socialDisable {
		return fmt.Errorf("pass exactly one of --enable or --disable")
	}
	if err := validateSocialPlatform(socialPlatform); err != nil {
		return err
	}

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

	social := store.NewSocialRepository(pool, logger)

	if err := social.SetAutoPost(ctx, socialUserID, socialPlatform, socialEnable); err != nil {
		if errors.Is(err, nterrors.ErrNotFound) {
			return fmt.Errorf("no %s connection for %s", socialPlatform, socialUserID)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Auto-post for %s/%s: %t\n", socialUserID, socialPlatform, socialEnable)
	return nil
}

func runSocialDisconnect(cmd *cobra.Command, args []string) error {
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

	social := store.NewSocialRepository(pool, logger)

	if err := social.Delete(ctx, socialUserID, socialPlatform); err != nil {
		if errors.Is(err, nterrors.ErrNotFound) {
			return fmt.Errorf("no %s connection for %s", socialPlatform, socialUserID)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s for %s\n", socialPlatform, socialUserID)
	return nil
}
