package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethdenver2026/gateway/rpc"
)

var chainID uint64

func init() {
	for _, cmd := range []*cobra.Command{createCmd, writeCmd, appendCmd, readCmd, deleteCmd, mkdirCmd, listCmd, terminateCmd} {
		cmd.Flags().Uint64Var(&chainID, "chain-id", 1, "chain id of the access control contract")
		cmd.Flags().String("contract", "", "access control contract address")
		_ = cmd.MarkFlagRequired("contract")
	}
	for _, cmd := range []*cobra.Command{writeCmd, appendCmd, readCmd, deleteCmd, mkdirCmd, listCmd} {
		cmd.Flags().String("file", "", "bubble path: <hash> or <hash>/<name>")
		_ = cmd.MarkFlagRequired("file")
	}

	createCmd.Flags().Bool("silent", false, "suppress ALREADY_EXISTS errors")
	writeCmd.Flags().String("data", "", "content to write")
	_ = writeCmd.MarkFlagRequired("data")
	appendCmd.Flags().String("data", "", "content to append")
	_ = appendCmd.MarkFlagRequired("data")
	deleteCmd.Flags().Bool("force", false, "delete a non-empty directory")
	deleteCmd.Flags().Bool("silent", false, "suppress DOES_NOT_EXIST errors")
	mkdirCmd.Flags().Bool("silent", false, "suppress ALREADY_EXISTS errors")
	listCmd.Flags().Bool("long", false, "include type, length, created, modified for every entry")
	terminateCmd.Flags().Bool("silent", false, "suppress errors if already terminated")

	rootCmd.AddCommand(createCmd, writeCmd, appendCmd, readCmd, deleteCmd, mkdirCmd, listCmd, terminateCmd)
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a bubble's root directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		silent, _ := cmd.Flags().GetBool("silent")
		var result interface{}
		if err := signedCall(rpc.MethodCreate, chainID, contract, "", "", optionsJSON(map[string]interface{}{"silent": silent}), &result); err != nil {
			printError(err)
			return err
		}
		fmt.Printf("%s bubble created: %s\n", colorGreen("✓"), contract)
		return nil
	},
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Overwrite a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		file, _ := cmd.Flags().GetString("file")
		data, _ := cmd.Flags().GetString("data")
		if err := signedCall(rpc.MethodWrite, chainID, contract, file, data, nil, nil); err != nil {
			printError(err)
			return err
		}
		fmt.Printf("%s wrote %s\n", colorGreen("✓"), file)
		return nil
	},
}

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		file, _ := cmd.Flags().GetString("file")
		data, _ := cmd.Flags().GetString("data")
		if err := signedCall(rpc.MethodAppend, chainID, contract, file, data, nil, nil); err != nil {
			printError(err)
			return err
		}
		fmt.Printf("%s appended to %s\n", colorGreen("✓"), file)
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		file, _ := cmd.Flags().GetString("file")
		var result string
		if err := signedCall(rpc.MethodRead, chainID, contract, file, "", nil, &result); err != nil {
			printError(err)
			return err
		}
		if jsonOut {
			return printJSON(result)
		}
		fmt.Println(result)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a file or directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		file, _ := cmd.Flags().GetString("file")
		force, _ := cmd.Flags().GetBool("force")
		silent, _ := cmd.Flags().GetBool("silent")
		opts := optionsJSON(map[string]interface{}{"force": force, "silent": silent})
		if err := signedCall(rpc.MethodDelete, chainID, contract, file, "", opts, nil); err != nil {
			printError(err)
			return err
		}
		fmt.Printf("%s deleted %s\n", colorGreen("✓"), file)
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir",
	Short: "Create a subdirectory",
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		file, _ := cmd.Flags().GetString("file")
		silent, _ := cmd.Flags().GetBool("silent")
		opts := optionsJSON(map[string]interface{}{"silent": silent})
		if err := signedCall(rpc.MethodMkdir, chainID, contract, file, "", opts, nil); err != nil {
			printError(err)
			return err
		}
		fmt.Printf("%s created directory %s\n", colorGreen("✓"), file)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a directory's contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		file, _ := cmd.Flags().GetString("file")
		long, _ := cmd.Flags().GetBool("long")
		opts := optionsJSON(map[string]interface{}{"long": long})

		var result []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Length   *int64 `json:"length,omitempty"`
			Created  *int64 `json:"created,omitempty"`
			Modified *int64 `json:"modified,omitempty"`
		}
		if err := signedCall(rpc.MethodList, chainID, contract, file, "", opts, &result); err != nil {
			printError(err)
			return err
		}
		if jsonOut {
			return printJSON(result)
		}
		if len(result) == 0 {
			fmt.Println("empty")
			return nil
		}
		w := newTable()
		if long {
			printTableHeader(w, "NAME", "TYPE", "LENGTH", "CREATED", "MODIFIED")
			for _, e := range result {
				fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%v\n", e.Name, e.Type, deref(e.Length), deref(e.Created), deref(e.Modified))
			}
		} else {
			printTableHeader(w, "NAME", "TYPE")
			for _, e := range result {
				fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Type)
			}
		}
		return w.Flush()
	},
}

var terminateCmd = &cobra.Command{
	Use:   "terminate",
	Short: "Permanently terminate a bubble",
	Long: `Terminate deletes a bubble and all of its content from the server.
This cannot be undone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, _ := cmd.Flags().GetString("contract")
		silent, _ := cmd.Flags().GetBool("silent")
		opts := optionsJSON(map[string]interface{}{"silent": silent})
		if err := signedCall(rpc.MethodTerminate, chainID, contract, "", "", opts, nil); err != nil {
			printError(err)
			return err
		}
		fmt.Printf("%s bubble terminated: %s\n", colorGreen("✓"), contract)
		return nil
	},
}

func deref(p *int64) interface{} {
	if p == nil {
		return "-"
	}
	return *p
}
