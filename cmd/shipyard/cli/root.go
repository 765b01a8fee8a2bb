// Package cli implements the shipyard command-line interface using
// Cobra. It exposes the same five operator tools the agent-tool surface
// calls, for operating on containers outside of an agent session.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/portmantle/shipyard/internal/config"
	"github.com/portmantle/shipyard/internal/containername"
	"github.com/portmantle/shipyard/internal/dockerrt"
	"github.com/portmantle/shipyard/internal/id"
	"github.com/portmantle/shipyard/internal/lifecycle"
	"github.com/portmantle/shipyard/internal/log"
	"github.com/portmantle/shipyard/internal/operator"
	"github.com/portmantle/shipyard/internal/routingstate"
	"github.com/portmantle/shipyard/internal/sessionscope"
)

var (
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "shipyard",
	Short: "Container routing for AI coding agent tool calls",
	Long: `shipyard intercepts an AI coding agent's filesystem and shell tool
calls and transparently redirects them into a per-session container
sandbox. This binary operates the same containers the agent-tool hooks
bind to, for inspection and cleanup outside of an agent session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := os.Getwd()
		if err != nil {
			projectRoot = "."
		}
		cfg := config.Load(projectRoot)

		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut || !isatty.IsTerminal(os.Stdout.Fd()),
			Interactive:   false,
			DebugDir:      cfg.LogDir,
			RetentionDays: cfg.LogRetentionDays,
		}); err != nil {
			cmd.PrintErrf("warning: failed to initialize logging: %v\n", err)
		}
		log.SetCallID(id.Generate("cli"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "write log output in JSON format")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newManager builds an operator.Manager rooted at the current working
// directory, wiring the same runtime, lifecycle, state, and scope
// primitives the agent-tool hooks use.
func newManager() (*operator.Manager, error) {
	projectRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	cfg := config.Load(projectRoot)

	runtime, err := dockerrt.New()
	if err != nil {
		return nil, fmt.Errorf("connecting to container runtime: %w", err)
	}

	state := routingstate.New(cfg.StateFilePath)
	lifecycleMgr := lifecycle.New(runtime)
	scope, err := sessionscope.New(noopParentLookup{}, 0)
	if err != nil {
		return nil, fmt.Errorf("building session scope resolver: %w", err)
	}

	projectID := containername.DeriveProjectID(projectRoot)
	return operator.New(cfg, scope, state, lifecycleMgr, runtime, projectID, projectRoot), nil
}

// noopParentLookup treats every session as its own root, since the CLI
// runs outside of any agent framework's session tree.
type noopParentLookup struct{}

func (noopParentLookup) ParentID(ctx context.Context, sessionID string) (string, bool, error) {
	return "", false, nil
}
