package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store <path>",
	Short: "Store a file or directory by content hash",
	Long: "Hash the file or directory at <path>, store it in the local cache " +
		"(and the remote when enabled), and print the resulting address.",
	Args: cobra.ExactArgs(1),
	RunE: runStore,
}

func init() {
	storeCmd.Flags().String("label", "", "address label (default: basename)")
	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, args []string) error {
	path := args[0]
	label, _ := cmd.Flags().GetString("label")

	st, err := openStore()
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if info.IsDir() {
		addr, err := st.StoreDir(ctx, path, label)
		if err != nil {
			return fmt.Errorf("store directory: %w", err)
		}
		fmt.Println(addr.Annotated())
		return nil
	}

	addr, err := st.StoreFile(ctx, path)
	if err != nil {
		return fmt.Errorf("store file: %w", err)
	}
	if label != "" {
		addr.Suffix = label
	}
	fmt.Println(addr.Annotated())
	return nil
}
