package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List containers this project owns",
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include stopped containers")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	out, err := mgr.List(context.Background(), listAll)
	if err != nil {
		return fmt.Errorf("listing containers: %w", err)
	}
	fmt.Println(out)
	return nil
}
