// Command paperfeed runs the paper links feed pipeline. Each pipeline role is
// a subcommand so the stages can be deployed and scaled independently.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
