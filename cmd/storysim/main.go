// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// storysim is a command-line client for the offline-first story engine. It
// exercises every engine operation: browsing, creating and favoriting
// stories, with durable offline queues and manual or probed connectivity.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mobiletoly/go-storysync/connectivity"
	"github.com/mobiletoly/go-storysync/internal/config"
	"github.com/mobiletoly/go-storysync/internal/imaging"
	"github.com/mobiletoly/go-storysync/storyapi"
	"github.com/mobiletoly/go-storysync/storystore"
	"github.com/mobiletoly/go-storysync/storysync"
)

var (
	flagConfig  string
	flagOffline bool
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Force offline mode (no network attempts)")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, storiesCmd, storyCmd,
		addCmd, favCmd, unfavCmd, favsCmd, draftsCmd, syncCmd)

	addCmd.Flags().StringVar(&addPhoto, "photo", "", "Path to the photo file (required)")
	addCmd.Flags().Float64Var(&addLat, "lat", 0, "Latitude")
	addCmd.Flags().Float64Var(&addLon, "lon", 0, "Longitude")
	_ = addCmd.MarkFlagRequired("photo")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "storysim",
	Short:         "Offline-first story client",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// app bundles everything a command needs. The caller must defer app.Close().
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storystore.Store
	session *storysync.Session
	gateway *storyapi.Client
	monitor *connectivity.Monitor
	engine  *storysync.Engine
}

func (a *app) Close() { _ = a.store.Close() }

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	store, err := storystore.Open(cfg.DatabaseFile, logger)
	if err != nil {
		return nil, err
	}
	if _, err := store.EnsureInstallID(ctx); err != nil {
		store.Close()
		return nil, err
	}

	session := storysync.NewSession(store, logger)
	if err := session.Restore(ctx); err != nil {
		store.Close()
		return nil, err
	}

	gateway := storyapi.NewClient(cfg.BaseURL, session.Token, logger)

	monitor := connectivity.NewMonitor(gateway.Ping, cfg.Net.ProbeInterval, logger)
	if !flagOffline && !cfg.Net.ForceOffline {
		// One synchronous probe; a CLI invocation is too short for the loop.
		monitor.SetOnline(gateway.Ping(ctx) == nil)
	}

	engineCfg := storysync.DefaultConfig()
	engineCfg.MaxDraftAttempts = cfg.Sync.MaxDraftAttempts
	engineCfg.Thumbnailer = imaging.Thumbnailer(cfg.Sync.ThumbnailWidth)

	engine, err := storysync.NewEngine(store, storystore.NewPendingLog(store, logger),
		gateway, monitor, session, engineCfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		session: session,
		gateway: gateway,
		monitor: monitor,
		engine:  engine,
	}, nil
}

var registerCmd = &cobra.Command{
	Use:   "register <name> <email> <password>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.gateway.Register(ctx, args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Println("Account created, you can now log in")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email> <password>",
	Short: "Authenticate and store the session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.gateway.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if err := a.session.SignIn(ctx, result.Token, result.UserID, result.Name); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", a.session.Name())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.session.SignOut(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "List stories (remote when online, cache otherwise)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.Stories(ctx, storysync.ListOptions{Page: 1, Size: 20, WithLocation: true})
		if err != nil {
			return err
		}
		if result.FromCache {
			fmt.Printf("(%s)\n", result.Message)
		}
		for _, story := range result.Stories {
			printStory(ctx, a, &story)
		}
		return nil
	},
}

var storyCmd = &cobra.Command{
	Use:   "story <id>",
	Short: "Show story details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.StoryDetail(ctx, args[0])
		if err != nil {
			return err
		}
		if result.FromCache {
			fmt.Printf("(%s)\n", result.Message)
		}
		printStory(ctx, a, result.Story)
		return nil
	},
}

var (
	addPhoto string
	addLat   float64
	addLon   float64
)

var addCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Create a story (queued as a draft when offline)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		photo, err := os.ReadFile(addPhoto)
		if err != nil {
			return fmt.Errorf("failed to read photo: %w", err)
		}

		story := &storysync.NewStory{
			Description: args[0],
			Photo:       photo,
			PhotoType:   "image/jpeg",
		}
		if cmd.Flags().Changed("lat") {
			story.Lat = &addLat
		}
		if cmd.Flags().Changed("lon") {
			story.Lon = &addLon
		}

		result, err := a.engine.AddStory(ctx, story)
		if err != nil {
			return err
		}
		if result.Offline {
			fmt.Printf("Queued offline as %s (%s)\n", result.TempID, result.Message)
		} else {
			fmt.Println("Story created")
		}
		return nil
	},
}

var favCmd = &cobra.Command{
	Use:   "fav <story-id>",
	Short: "Add a story to favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		detail, err := a.engine.StoryDetail(ctx, args[0])
		if err != nil {
			return err
		}
		result, err := a.engine.AddToFavorites(ctx, detail.Story)
		if err != nil {
			return err
		}
		if result.Queued {
			fmt.Println("Added to favorites (will sync when online)")
		} else {
			fmt.Println("Added to favorites")
		}
		return nil
	},
}

var unfavCmd = &cobra.Command{
	Use:   "unfav <story-id>",
	Short: "Remove a story from favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.RemoveFromFavorites(ctx, args[0])
		if err != nil {
			return err
		}
		if result.Queued {
			fmt.Println("Removed from favorites (will sync when online)")
		} else {
			fmt.Println("Removed from favorites")
		}
		return nil
	},
}

var favsCmd = &cobra.Command{
	Use:   "favs",
	Short: "List favorited stories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		stories, err := a.engine.Favorites(ctx)
		if err != nil {
			return err
		}
		for _, story := range stories {
			fmt.Printf("★ %s  %s\n", story.ID, story.Description)
		}
		return nil
	},
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List stories queued for sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		drafts, err := a.engine.Drafts(ctx)
		if err != nil {
			return err
		}
		for _, draft := range drafts {
			state := "pending"
			if draft.Stalled {
				state = "stalled"
			}
			fmt.Printf("%s  %s  [%s, attempts=%d]\n",
				draft.TempID, draft.Description, state, draft.Attempts)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued offline work against the remote API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.monitor.IsOnline() {
			return fmt.Errorf("cannot sync while offline")
		}
		summary, err := a.engine.Reconcile(ctx)
		if err != nil {
			return err
		}
		if summary == nil {
			return nil
		}
		fmt.Printf("Synced %d draft(s), %d kept for retry, %d stalled; %d favorite action(s) applied\n",
			summary.DraftsSynced, summary.DraftsFailed, summary.DraftsStalled, summary.FavoritesApplied)
		return nil
	},
}

func printStory(ctx context.Context, a *app, story *storysync.Story) {
	fav, err := a.engine.IsFavorite(ctx, story.ID)
	marker := " "
	if err == nil && fav {
		marker = "★"
	}
	loc := ""
	if story.Lat != nil && story.Lon != nil {
		loc = " @" + strconv.FormatFloat(*story.Lat, 'f', 4, 64) +
			"," + strconv.FormatFloat(*story.Lon, 'f', 4, 64)
	}
	fmt.Printf("%s %s  %s: %s%s\n", marker, story.ID, story.AuthorName, story.Description, loc)
}
