package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the container bound to this session and its state",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	msg, err := mgr.Info(context.Background(), "")
	if err != nil {
		return fmt.Errorf("reading session info: %w", err)
	}
	fmt.Println(msg)
	return nil
}
