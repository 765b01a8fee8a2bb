package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portmantle/shipyard/internal/operator"
)

var (
	createName        string
	createImage       string
	createWorkdir     string
	createProjectPath string
	createNetwork     string
	createMounts      []string
	createCommand     []string
	createEnv         map[string]string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create (or ensure running) the container bound to this session",
	RunE:  runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "container name (derived if omitted)")
	createCmd.Flags().StringVar(&createImage, "image", "", "container image (defaults to config)")
	createCmd.Flags().StringVar(&createWorkdir, "workdir", "", "container working directory")
	createCmd.Flags().StringVar(&createProjectPath, "project-path", "", "host path mounted into the container")
	createCmd.Flags().StringVar(&createNetwork, "network", "", "container network")
	createCmd.Flags().StringSliceVar(&createMounts, "mount", nil, "extra bind mount, source:target[:ro] (repeatable)")
	createCmd.Flags().StringSliceVar(&createCommand, "command", nil, "container entrypoint command")
	createCmd.Flags().StringToStringVar(&createEnv, "env", nil, "environment variable, KEY=VALUE (repeatable)")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	msg, err := mgr.Create(context.Background(), "", operator.CreateOptions{
		Name:        createName,
		Image:       createImage,
		Workdir:     createWorkdir,
		ProjectPath: createProjectPath,
		Network:     createNetwork,
		Mounts:      createMounts,
		Command:     createCommand,
		Env:         createEnv,
	})
	if err != nil {
		return fmt.Errorf("creating container: %w", err)
	}
	fmt.Println(msg)
	return nil
}
