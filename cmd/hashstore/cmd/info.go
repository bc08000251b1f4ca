package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <path-or-address>",
	Short: "Show where content lives and how big it is",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	info, err := st.Info(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	fmt.Printf("address\t%s\n", info.Address.Annotated())
	fmt.Printf("size\t%d\n", info.Size)
	if info.Path != "" {
		fmt.Printf("path\t%s\n", info.Path)
	}
	return nil
}
