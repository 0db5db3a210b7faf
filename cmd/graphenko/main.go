// Package main is the entry point for the graphenko CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ivan200424/graphenko/internal/chatstore"
	"github.com/ivan200424/graphenko/internal/command"
	"github.com/ivan200424/graphenko/internal/config"
	"github.com/ivan200424/graphenko/internal/monitor"
	"github.com/ivan200424/graphenko/internal/reconcile"
	"github.com/ivan200424/graphenko/internal/runner"
	"github.com/ivan200424/graphenko/internal/schedule"
	"github.com/ivan200424/graphenko/internal/telegram"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errChatFailures distinguishes a completed pass with failing chats from a
// pass that could not run at all. It maps to exit status 2.
var errChatFailures = errors.New("some chats failed")

func main() {
	// Local .env files carry BOT_TOKEN in development; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		if errors.Is(err, errChatFailures) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graphenko",
		Short:         "Pinned outage-schedule notifications for Telegram chats",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), runCmd(), monitorCmd(), scheduleCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("graphenko %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one notification pass over all registered chats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			state, err := chatstore.Load(cfg.Bot.ChatsFile)
			if err != nil {
				return err
			}

			client := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL)
			commands := command.New(state, client, command.NewVerifier(), cfg.Bot.ImagesBaseURL, logger)
			engine := reconcile.New(state, client, cfg.Bot.DefaultCaption, cfg.Bot.ChatDelay, logger)
			r := runner.New(state, client, commands, engine,
				cfg.Bot.ChatsFile, cfg.Bot.WelcomeDelay, logger)

			summary, err := r.Run(context.Background())
			if err != nil {
				return err
			}
			if summary.HasFailures() {
				return fmt.Errorf("%d of %d chats: %w",
					summary.Failed, state.Len(), errChatFailures)
			}
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Probe monitored hosts once and record status changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			state, err := chatstore.Load(cfg.Bot.ChatsFile)
			if err != nil {
				return err
			}

			checker := monitor.New(state, cfg.Monitor.Timeout, logger)
			results := checker.Run()

			if state.Dirty() {
				if err := state.Save(cfg.Bot.ChatsFile); err != nil {
					return err
				}
			}

			fmt.Println(monitor.Report(results))
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule <region> <group>",
		Short: "Print the published outage schedule for a region and group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}

			region, group := args[0], args[1]
			data, err := schedule.NewClient(cfg.Bot.DataBaseURL).Fetch(cmd.Context(), region)
			if err != nil {
				return err
			}

			fmt.Print(schedule.FormatText(data, group, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration OK (chats file: %s)\n", cfg.Bot.ChatsFile)
			return nil
		},
	})
	return cmd
}

// setup loads and validates the configuration named by --config (or found
// in a standard location) and builds the process logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return nil, nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return cfg, logger, nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/graphenko/graphenko.yaml → ./graphenko.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "graphenko", "graphenko.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "graphenko", "graphenko.yaml"))
	}

	candidates = append(candidates, "graphenko.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
