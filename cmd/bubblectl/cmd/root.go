package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	privateKey string
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "bubblectl",
	Short: "Operator CLI for a Bubble Protocol Guardian",
	Long: `bubblectl signs and sends JSON-RPC requests against a running bubbled
Guardian: create bubbles, write, append, read and delete files, make and
list directories, and terminate bubbles.

Examples:
  bubblectl mkdir --contract 0xABC... --file <hash>
  bubblectl write --contract 0xABC... --file <hash>/notes.txt --data "hello"
  bubblectl list --contract 0xABC... --file <hash> --long`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080/rpc", "bubbled JSON-RPC endpoint")
	rootCmd.PersistentFlags().StringVar(&privateKey, "key", os.Getenv("BUBBLECTL_PRIVATE_KEY"), "hex-encoded signing key (or BUBBLECTL_PRIVATE_KEY)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON results")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", colorRed("✗"), err)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
}

func printTableHeader(w *tabwriter.Writer, cols ...string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

func colorGreen(s string) string  { return "\033[32m" + s + "\033[0m" }
func colorRed(s string) string    { return "\033[31m" + s + "\033[0m" }
func colorYellow(s string) string { return "\033[33m" + s + "\033[0m" }
