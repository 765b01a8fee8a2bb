package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portmantle/shipyard/internal/operator"
)

var (
	clearStop   bool
	clearRemove bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove this session's binding to its container",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearStop, "stop", false, "also stop the container")
	clearCmd.Flags().BoolVar(&clearRemove, "remove", false, "also remove the container")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	msg, err := mgr.Clear(context.Background(), "", operator.ClearOptions{
		Stop:   clearStop,
		Remove: clearRemove,
	})
	if err != nil {
		return fmt.Errorf("clearing binding: %w", err)
	}
	fmt.Println(msg)
	return nil
}
