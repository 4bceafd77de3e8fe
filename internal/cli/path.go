package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the resolved log directory",
	Long: `Resolve the log directory the way a logging session would, creating it if
needed, and print its absolute path. Falls back to the per-user application
data directory when the primary location is not writable.`,
	Args: cobra.NoArgs,
	RunE: runPath,
}

func init() {
	rootCmd.AddCommand(pathCmd)
}

func runPath(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := resolveDir(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
