package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/service"
	"github.com/mmcdole/storywave/internal/tui/styles"
)

const requestTimeout = 30 * time.Second

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the story service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.session.Login(cmd.Context())
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		name := id.Username
		if name == "" {
			name = id.Principal
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Signed in as %s\n", name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		if err := a.session.Logout(ctx); err != nil {
			// Local credentials are gone either way
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
		return nil
	},
}

var flagClearHistory bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played stories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		if flagClearHistory {
			if err := a.history.Clear(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(out, "✓ History cleared")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		stories, err := a.stories.RecentlyPlayed(ctx)
		if err != nil {
			return err
		}
		if len(stories) == 0 {
			fmt.Fprintln(out, "Nothing played yet")
			return nil
		}
		printStories(out, stories)
		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play <story-id>",
	Short: "Play a story without the interface until it ends",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lookupCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		story, err := a.stories.FindStory(lookupCtx, args[0])
		cancel()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s · %s\n", styles.PlayingChar, story.Title, story.CreatorName)
		return playUntilEnded(ctx, a.player, story)
	},
}

// playUntilEnded opens story and blocks until it finishes, fails, or ctx
// is cancelled
func playUntilEnded(ctx context.Context, p *service.PlaybackSession, story domain.Story) error {
	states, unsubscribe := p.Subscribe()
	defer unsubscribe()

	p.Open(ctx, story)
	p.Play()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-states:
			if !ok {
				return nil
			}
			// Sends can be dropped; read the latest snapshot
			state := p.State()
			if !state.Bound() {
				return nil
			}
			if state.Err != nil {
				return state.Err
			}
			if state.Transport == service.TransportPaused &&
				state.Duration > 0 && state.Position >= state.Duration {
				return nil
			}
		}
	}
}

var (
	flagTitle       string
	flagDescription string
	flagCategory    string
	flagCover       string
	flagAudio       string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a new story with optional audio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := domain.ParseCategory(flagCategory)
		if err != nil {
			return err
		}
		var audio []byte
		if flagAudio != "" {
			audio, err = os.ReadFile(flagAudio)
			if err != nil {
				return fmt.Errorf("failed to read audio: %w", err)
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		story, err := a.stories.Publish(cmd.Context(), service.PublishRequest{
			Title:         flagTitle,
			Description:   flagDescription,
			Category:      category,
			CoverImageURL: flagCover,
			Audio:         audio,
		}, func(loaded, total int) {
			fmt.Fprintf(out, "\rUploading %s", styles.RenderProgressBar(float64(loaded)/float64(max(total, 1)), 30))
		})
		if len(audio) > 0 {
			fmt.Fprintln(out)
		}
		if err != nil {
			if story.ID != "" {
				return fmt.Errorf("story %s saved but audio upload failed: %w", story.ID, err)
			}
			return err
		}
		fmt.Fprintf(out, "✓ Published %q (%s)\n", story.Title, story.ID)
		return nil
	},
}

var (
	flagGenre  string
	flagTone   string
	flagPrompt string
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Generate an AI story draft and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*requestTimeout)
		defer cancel()

		if _, err := a.stories.GenerateDraft(ctx, flagGenre, flagTone, flagPrompt); err != nil {
			return err
		}
		draft, err := a.stories.Draft(ctx)
		if err != nil {
			return err
		}
		d, ok := draft.Get()
		if !ok {
			return fmt.Errorf("draft: %w", domain.ErrNotFound)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.TitleStyle.Render(d.Draft.Title))
		if d.Draft.Description != "" {
			fmt.Fprintln(out, styles.DimStyle.Render(d.Draft.Description))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, d.Draft.Body)
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&flagClearHistory, "clear", false, "forget every recently played story")

	publishCmd.Flags().StringVar(&flagTitle, "title", "", "story title")
	publishCmd.Flags().StringVar(&flagDescription, "description", "", "short description")
	publishCmd.Flags().StringVar(&flagCategory, "category", "", "one of: horror, romance, motivation, comedy, scifi, realLife")
	publishCmd.Flags().StringVar(&flagCover, "cover", "", "cover image URL")
	publishCmd.Flags().StringVar(&flagAudio, "audio", "", "audio file to upload")
	_ = publishCmd.MarkFlagRequired("title")
	_ = publishCmd.MarkFlagRequired("category")

	draftCmd.Flags().StringVar(&flagGenre, "genre", "", "story genre")
	draftCmd.Flags().StringVar(&flagTone, "tone", "", "story tone")
	draftCmd.Flags().StringVar(&flagPrompt, "prompt", "", "what the story is about")
}

func printStories(w io.Writer, stories []domain.Story) {
	for _, st := range stories {
		creator := st.CreatorName
		if creator == "" {
			creator = service.AnonymousCreator
		}
		fmt.Fprintf(w, "%-36s  %-10s  %s · %s\n", st.ID, st.Category.Label(), st.Title, creator)
	}
}

