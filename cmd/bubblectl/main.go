// Command bubblectl is an operator CLI for a Bubble Protocol Guardian.
package main

import (
	"fmt"
	"os"

	"github.com/ethdenver2026/gateway/cmd/bubblectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
