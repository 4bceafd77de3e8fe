// Command logkeeper manages an application's log directory.
package main

import (
	"os"

	"github.com/harun/logkeeper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
