// Command ordinal maintains densely packed record positions in SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ordinal/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
