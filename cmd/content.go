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

// Content command flags.
var contentEventID string

// ContentCmd represents the content command group.
var ContentCmd = &cobra.Command{
	Use:   "content",
	Short: "Inspect generated follow-up emails and posts",
}

var contentEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Show the follow-up email generated for an event",
	RunE:  runContentEmail,
}

var contentPostsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List the social posts generated for an event",
	RunE:  runContentPosts,
}

func init() {
	contentEmailCmd.Flags().StringVar(&contentEventID, "event", "", "Event ID (required)")
	contentEmailCmd.MarkFlagRequired("event")

	contentPostsCmd.Flags().StringVar(&contentEventID, "event", "", "Event ID (required)")
	contentPostsCmd.MarkFlagRequired("event")

	ContentCmd.AddCommand(contentEmailCmd)
	ContentCmd.AddCommand(contentPostsCmd)
}

func runContentEmail(cmd *cobra.Command, args []string) error {
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

	content := store.NewContentRepository(pool, logger)

	email, err := content.GetFollowUpEmail(ctx, contentEventID)
	if err != nil {
		if errors.Is(err, nterrors.ErrNotFound) {
			return fmt.Errorf("no follow-up email for event %s", contentEventID)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Event:   %s\n", email.EventID)
	fmt.Fprintf(out, "Created: %s\n", email.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "\n%s\n", email.Content)
	return nil
}

func runContentPosts(cmd *cobra.Command, args []string) error {
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

	content := store.NewContentRepository(pool, logger)

	posts, err := content.ListPostsByEvent(ctx, contentEventID)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No posts for event %s\n", contentEventID)
		return nil
	}

	out := cmd.OutOrStdout()
	for i, p := range posts {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Platform: %s\n", p.Platform)
		fmt.Fprintf(out, "Status:   %s\n", p.Status)
		if p.PostedAt != nil {
			fmt.Fprintf(out, "Posted:   %s\n", p.PostedAt.Format(time.RFC3339))
		}
		if p.PlatformPostID != nil {
			fmt.Fprintf(out, "Post ID:  %s\n", *p.PlatformPostID)
		}
		fmt.Fprintf(out, "\n%s\n", p.Content)
	}
	return nil
}
