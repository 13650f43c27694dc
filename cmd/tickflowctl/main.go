// Command tickflowctl is the operator/test-harness CLI: replay a persisted
// log, generate synthetic feed traffic, or subscribe to a running server
// from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/adred-codev/tickflow/cmd/tickflowctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
