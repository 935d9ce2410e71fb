// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianChat/pkg/logging"
	"github.com/AleutianAI/AleutianChat/services/llm"
	"github.com/AleutianAI/AleutianChat/services/orchestrator"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/config"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/modes"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/sessions"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/store"
	"github.com/AleutianAI/AleutianChat/services/orchestrator/turn"
)

// cliOptions holds flags shared by every subcommand.
type cliOptions struct {
	configPath string
	jsonOutput bool
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Conversational session orchestrator",
		Long:          `Serves the chat API and administers the persisted session store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("ORCHESTRATOR_CONFIG"),
		"Path to the YAML configuration file (env ORCHESTRATOR_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print machine-readable JSON")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newSessionsCmd(opts))
	rootCmd.AddCommand(newModesCmd(opts))
	rootCmd.AddCommand(newTurnCmd(opts))
	return rootCmd
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer logger.Close()

			svc, err := orchestrator.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create orchestrator: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return svc.Run(ctx)
		},
	}
}

// =============================================================================
// sessions
// =============================================================================

func newSessionsCmd(opts *cliOptions) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:     "sessions",
		Short:   "Inspect and manage stored sessions",
		Aliases: []string{"s"},
	}

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, opts, func(ctx context.Context, _ *config.Config, mgr *sessions.Manager) error {
				list, err := mgr.ListSummaries(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CHAT ID\tTITLE\tCREATED")
				for _, s := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ChatID, s.Title,
						time.UnixMilli(s.CreatedAt).UTC().Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print one session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, opts, func(ctx context.Context, _ *config.Config, mgr *sessions.Manager) error {
				sess, err := mgr.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), sess)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Title:   %s\n", sess.Title)
				fmt.Fprintf(out, "Created: %s\n", time.UnixMilli(sess.CreatedAt).UTC().Format(time.RFC3339))
				if sess.ForcedMode != nil {
					fmt.Fprintf(out, "Mode:    %s (forced)\n", *sess.ForcedMode)
				}
				if sess.Memory != "" {
					fmt.Fprintf(out, "Memory:  %s\n", sess.Memory)
				}
				fmt.Fprintln(out)
				for _, m := range sess.Messages {
					fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
				}
				return nil
			})
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Create a session and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, opts, func(ctx context.Context, _ *config.Config, mgr *sessions.Manager) error {
				id, err := mgr.Create(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), datatypes.NewChatResponse{ChatID: id})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:     "delete <chat-id>",
		Short:   "Delete a session",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, opts, func(ctx context.Context, _ *config.Config, mgr *sessions.Manager) error {
				existed, err := mgr.Remove(ctx, args[0])
				if err != nil {
					return err
				}
				if !existed {
					return fmt.Errorf("%s: %w", args[0], datatypes.ErrNotFound)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "rename <chat-id> <title>",
		Short: "Change a session title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, opts, func(ctx context.Context, _ *config.Config, mgr *sessions.Manager) error {
				return mgr.Rename(ctx, args[0], args[1])
			})
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "mode <chat-id> [mode]",
		Short: "Force a response mode, or clear it when mode is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var forced *datatypes.ModeID
			if len(args) == 2 {
				m, ok := datatypes.ParseModeID(args[1])
				if !ok {
					return fmt.Errorf("%w: unknown mode %q", datatypes.ErrInvalidRequest, args[1])
				}
				forced = &m
			}
			return withManager(cmd, opts, func(ctx context.Context, _ *config.Config, mgr *sessions.Manager) error {
				return mgr.SetForcedMode(ctx, args[0], forced)
			})
		},
	})

	return sessionsCmd
}

// =============================================================================
// modes
// =============================================================================

func newModesCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List response modes in detection priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := modes.All()
			if opts.jsonOutput {
				infos := make([]datatypes.ModeInfo, 0, len(all))
				for _, p := range all {
					infos = append(infos, p.Info())
				}
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODE\tTEMPERATURE\tMAX TOKENS")
			for _, p := range all {
				fmt.Fprintf(tw, "%s\t%.1f\t%d\n", p.ID, p.Temperature, p.MaxTokens)
			}
			return tw.Flush()
		},
	}
}

// =============================================================================
// turn
// =============================================================================

func newTurnCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "turn <chat-id> <message>",
		Short: "Run one turn against the configured generator without the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd, opts, func(ctx context.Context, cfg *config.Config, mgr *sessions.Manager) error {
				gen, err := llm.NewClient(llm.Config{
					Backend:     llm.Backend(cfg.LLM.Backend),
					Model:       cfg.LLM.Model,
					BaseURL:     cfg.LLM.BaseURL,
					HTTPTimeout: cfg.LLM.Timeout,
				})
				if err != nil {
					return err
				}
				defer llm.Purge()

				orch := turn.New(mgr, gen, turn.Config{
					Window:           cfg.Turn.Window,
					GeneratorTimeout: cfg.Turn.GeneratorTimeout,
					MaxRetries:       cfg.Turn.MaxRetries,
				}, nil, nil)
				res, err := orch.HandleTurn(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), datatypes.ChatResponse{Reply: res.Reply, ModeUsed: res.ModeUsed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", res.ModeUsed, res.Reply)
				return nil
			})
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

// withManager loads the configuration, opens the configured store directly,
// runs fn and closes the store.
//
// # Limitations
//
//   - The server must not be running against the same store. Badger refuses
//     to open a directory another process holds. The document and sqlite
//     backends open without complaint, but session locks are per process,
//     so a CLI write can overwrite or resurrect a session the server changes
//     at the same time.
func withManager(cmd *cobra.Command, opts *cliOptions, fn func(context.Context, *config.Config, *sessions.Manager) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := store.Open(store.Options{
		Backend: store.Backend(cfg.Store.Backend),
		Path:    cfg.Store.Path,
		Logger:  logger.Slog(),
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runErr := fn(ctx, cfg, sessions.NewManager(s, logger.Slog(), nil))
	return errors.Join(runErr, s.Close())
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config, w io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.Log.Format),
		LogDir:  cfg.Log.Dir,
		Service: "orchestrator",
		Output:  w,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
