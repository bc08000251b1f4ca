package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aweris/hashstore"
)

var catCmd = &cobra.Command{
	Use:   "cat <address>",
	Short: "Write content to stdout, optionally a byte range",
	Long: "Stream the content behind <address> to stdout. --start (inclusive) " +
		"and --end (exclusive) select a byte range; --end alone selects the " +
		"last N bytes.",
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

func init() {
	catCmd.Flags().Int64("start", -1, "start offset, inclusive")
	catCmd.Flags().Int64("end", -1, "end offset, exclusive")
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	var opts []hashstore.LoadOption
	if cmd.Flags().Changed("start") {
		n, _ := cmd.Flags().GetInt64("start")
		opts = append(opts, hashstore.WithStart(n))
	}
	if cmd.Flags().Changed("end") {
		n, _ := cmd.Flags().GetInt64("end")
		opts = append(opts, hashstore.WithEnd(n))
	}

	data, err := st.LoadBytes(cmd.Context(), args[0], opts...)
	if err != nil {
		return fmt.Errorf("cat: %w", err)
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return err
	}
	return nil
}
