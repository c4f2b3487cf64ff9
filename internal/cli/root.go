// Package cli provides the agentctl command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/unclebandit/smsleopard-agent/internal/app"
	"github.com/unclebandit/smsleopard-agent/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

// session holds what the subcommands share once the root command has run.
type session struct {
	app     *app.App
	verbose bool
}

// newRootCmd builds the agentctl command tree.
func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	root := &cobra.Command{
		Use:   "agentctl",
		Short: "Operate the SMS sales agent",
		Long: `agentctl talks to the conversation store directly.

It can play a customer's side of a conversation against the configured
agent, enroll contacts in campaigns and hand conversations to or from
human operators. Configuration is read from AGENT_* environment variables
and an optional .env file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return s.open(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.close(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newChatCmd(s))
	root.AddCommand(newEnrollCmd(s))
	root.AddCommand(newStatusCmd(s))
	root.AddCommand(newHistoryCmd(s))
	root.AddCommand(newCampaignsCmd(s))
	return root, s
}

// Execute runs agentctl with os.Args.
func Execute() error {
	root, s := newRootCmd()
	defer s.close(os.Stderr)
	return root.ExecuteContext(context.Background())
}

func (s *session) open(ctx context.Context, stderr io.Writer) error {
	cfg, err := config.NewLoadedConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Commands run to completion in this process.
	cfg.QueueBackend = config.QueueMemory

	level := cfg.Level()
	if s.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	a, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	s.app = a
	return nil
}

// close releases the app. PersistentPostRun is skipped when a command
// fails, so Execute calls it too.
func (s *session) close(stderr io.Writer) {
	if s.app == nil {
		return
	}
	if err := s.app.Close(); err != nil {
		fmt.Fprintf(stderr, "Warning: failed to close: %v\n", err)
	}
	s.app = nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
