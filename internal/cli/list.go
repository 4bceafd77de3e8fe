package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harun/logkeeper/pkg/logger"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List log files, oldest first",
	Long: `List the log files in the log directory, oldest first, with their size and
age. The newest file, the one a child session appends to, is marked with *.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := resolveDir(cfg)
	if err != nil {
		return err
	}

	files, err := logger.ListLogFiles(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", logger.ErrDirectoryUnavailable, err)
	}

	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintf(out, "No log files in %s\n", dir)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tSIZE\tAGE")

	now := time.Now()
	for i, f := range files {
		marker := ""
		if i == len(files)-1 {
			marker = "*"
		}

		size, age := "-", "-"
		if info, err := os.Stat(f.Path); err == nil {
			size = formatSize(info.Size())
		}
		if created, ok := f.Created(); ok {
			age = formatDuration(now.Sub(created))
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, f.Name, size, age)
	}

	return w.Flush()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
