package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls <address>",
	Short: "List a stored directory",
	Long: "Resolve a directory address and print its entries, subdirectories " +
		"first with a trailing slash. Only the addressed manifest is fetched.",
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	dirs, files, err := st.ListDir(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("ls: %w", err)
	}

	for _, d := range dirs {
		fmt.Println(d + "/")
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}
