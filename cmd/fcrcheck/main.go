// Command fcrcheck verifies memory-policy and effect composition across
// module boundaries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fcrcheck/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands write their report to stdout; the summary goes to stderr
		fmt.Fprintln(os.Stderr, "fcrcheck:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
