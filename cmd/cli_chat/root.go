package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flyer-agent/internal/app"
	"flyer-agent/internal/config"
	"flyer-agent/internal/repository"
	"flyer-agent/internal/service"
)

type cliOptions struct {
	userID     string
	store      string
	sqlitePath string
	offline    bool
	verbose    bool
}

// cliRuntime son las dependencias abiertas para un comando.
type cliRuntime struct {
	cfg      *config.Config
	logger   *zap.Logger
	repo     repository.MessageRepository
	turns    *service.TurnService
	history  *service.HistoryService
	sessions *service.SessionService
	close    func()
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	rt := &cliRuntime{}

	root := &cobra.Command{
		Use:   "cli_chat",
		Short: "Chat with the flyer design agent from the terminal",
		Long: `Terminal client for the flyer design agent.

Runs the same turn pipeline as the API against the configured store, so
conversations started here show up in the web UI for the same user id.

Quick Start:
  cli_chat chat --offline --store sqlite     # Chat without calling a model
  cli_chat sessions --user u1                # List sessions
  cli_chat history s1 --format yaml          # Dump one conversation`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.open(cmd.Context(), cmd, opts)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			rt.shutdown()
		},
	}

	root.PersistentFlags().StringVarP(&opts.userID, "user", "u", "cli", "User id that owns the conversations")
	root.PersistentFlags().StringVar(&opts.store, "store", "", "Store driver override (postgres, sqlite, memory)")
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite file override")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "Use a canned reply instead of a real model")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(newChatCmd(opts, rt), newSessionsCmd(opts, rt), newHistoryCmd(opts, rt), newTokenCmd(opts, rt))
	return root
}

func (rt *cliRuntime) open(ctx context.Context, cmd *cobra.Command, opts *cliOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadConfigWith(func(c *config.Config) {
		if opts.store != "" {
			c.StoreDriver = opts.store
		}
		if opts.sqlitePath != "" {
			c.SQLitePath = opts.sqlitePath
		}
		if opts.offline {
			c.LLMProvider = config.ProviderMock
		}
	})
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		logger, _ = zap.NewDevelopment()
	}

	repo, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	backend, err := app.NewBackend(ctx, cfg, logger)
	if err != nil {
		closeStore()
		return err
	}
	turns, err := app.NewTurnService(cfg, repo, backend, nil, logger)
	if err != nil {
		closeStore()
		return err
	}

	rt.cfg = cfg
	rt.logger = logger
	rt.repo = repo
	rt.turns = turns
	rt.history = service.NewHistoryService(repo)
	rt.sessions = service.NewSessionService(repo, logger)
	rt.close = closeStore
	logger.Debug("cli ready",
		zap.String("command", cmd.Name()),
		zap.String("store", cfg.StoreDriver),
		zap.String("llm_provider", cfg.LLMProvider),
	)
	return nil
}

func (rt *cliRuntime) shutdown() {
	if rt.close != nil {
		rt.close()
		rt.close = nil
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

func requireRuntime(rt *cliRuntime) error {
	if rt.turns == nil {
		return errors.New("runtime not initialized")
	}
	return nil
}
