package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var useCmd = &cobra.Command{
	Use:   "use <container>",
	Short: "Bind this session to an existing container",
	Args:  cobra.ExactArgs(1),
	RunE:  runUse,
}

func init() {
	rootCmd.AddCommand(useCmd)
}

func runUse(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	msg, err := mgr.Use(context.Background(), "", args[0])
	if err != nil {
		return fmt.Errorf("binding to container %s: %w", args[0], err)
	}
	fmt.Println(msg)
	return nil
}
