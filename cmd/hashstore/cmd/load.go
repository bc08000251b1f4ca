package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <address> [dest]",
	Short: "Materialize content as a local file",
	Long: "Resolve <address> (from the local cache, or the remote when enabled) " +
		"and print the local path holding its content. With [dest], copy the " +
		"content there instead.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	dest := ""
	if len(args) > 1 {
		dest = args[1]
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	path, err := st.LoadFile(cmd.Context(), args[0], dest)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	fmt.Println(path)
	return nil
}
