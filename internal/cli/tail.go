package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/logkeeper/internal/follow"
	"github.com/spf13/cobra"
)

var (
	tailLines  int
	tailFollow bool
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the end of the newest log file",
	Long: `Show the last lines of the newest log file. With --follow, keep printing
records as they are appended and switch to newer log files as sessions
create them (like 'tail -F').`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().IntVarP(&tailLines, "lines", "n", 20, "number of lines to show")
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", false, "follow log output")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := resolveDir(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if tailFollow {
		f, err := follow.New(follow.Config{Dir: dir, Out: out, Lines: tailLines})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return f.Run(ctx)
	}

	newest, err := follow.Newest(dir)
	if err != nil {
		return err
	}
	if newest == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "No log files in %s\n", dir)
		return nil
	}

	lines, err := follow.Tail(newest, tailLines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
