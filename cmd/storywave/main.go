package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/storywave/internal/backend"
	"github.com/mmcdole/storywave/internal/config"
	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/history"
	"github.com/mmcdole/storywave/internal/identity"
	"github.com/mmcdole/storywave/internal/log"
	"github.com/mmcdole/storywave/internal/player"
	"github.com/mmcdole/storywave/internal/query"
	"github.com/mmcdole/storywave/internal/service"
	"github.com/mmcdole/storywave/internal/store"
	"github.com/mmcdole/storywave/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "storywave",
	Short:         "Listen to short audio stories from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "directory containing config.yaml")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(draftCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "storywave %s\n", Version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired services shared by every command
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	history *history.Store
	cache   *query.Cache
	auth    *identity.PasswordProvider
	session *service.Session
	stories *service.StoryService
	player  *service.PlaybackSession

	logFile io.Closer
}

// newApp loads the config and wires the services. The session is started,
// so reads work as soon as it returns.
func newApp() (*app, error) {
	var paths []string
	if flagConfig != "" {
		paths = append(paths, flagConfig)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("no server configured: set server.url in %s or %s_SERVER_URL", cfg.Path(), config.EnvPrefix)
	}

	logger, logFile, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, logFile: logFile}

	storagePath, err := config.ExpandHome(cfg.Storage.Path)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store, err = store.New(storagePath)
	if err != nil {
		logger.Warn("local store unavailable, history will not persist", "error", err)
		a.store, _ = store.New("")
	}

	a.history = history.New(a.store, logger)
	a.cache = query.NewCache(logger)
	a.auth = identity.NewPasswordProvider(cfg, func(token string) identity.Server {
		return backend.NewClient(cfg.Server.URL, token, logger)
	}, nil, logger)

	a.session = service.NewSession(a.auth, func(id domain.Identity, authenticated bool) (domain.RemoteService, error) {
		token := ""
		if authenticated {
			token = id.Token
		}
		return backend.NewClient(cfg.Server.URL, token, logger), nil
	}, a.cache, logger)
	if err := a.session.Start(); err != nil {
		a.close()
		return nil, err
	}

	a.stories = service.NewStoryService(a.session, a.cache, a.history, logger)
	a.stories.SetTrendingLimit(cfg.Playback.TrendingLimit)

	media := player.NewMPV(cfg.Player.Command, cfg.Player.Args, logger)
	a.player = service.NewPlaybackSession(media, a.stories, a.history, logger)

	logger.Info("starting storywave", "version", Version, "server", cfg.Server.URL)
	return a, nil
}

// close stops playback and releases the store and log file
func (a *app) close() {
	if a.player != nil {
		a.player.Close()
		a.player.Wait()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", "error", err)
		}
	}
	a.logger.Info("shutting down")
	if a.logFile != nil {
		a.logFile.Close()
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("storywave needs an interactive terminal; see 'storywave --help' for headless commands")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	model := tui.NewModel(a.stories, a.player, a.session, a.cfg.Playback.SkipSeconds, a.logger)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())

	a.logger.Info("starting TUI")
	final, err := p.Run()
	if fm, ok := final.(tui.Model); ok {
		// Subscriptions move as tabs change; release the last ones
		fm.Close()
	}
	if err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
