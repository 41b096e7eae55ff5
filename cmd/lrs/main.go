// Command lrs stores and queries xAPI statements.
package main

import (
	"fmt"
	"os"

	"github.com/xabbuh/studip-experience-api-plugin/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
