package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/ethdenver2026/gateway/contentid"
	"github.com/ethdenver2026/gateway/sig"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect signing keys",
}

var keysAddressCmd = &cobra.Command{
	Use:   "address <hexkey>",
	Short: "Print the address a private key signs as",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(args[0], "0x"))
		if err != nil {
			printError(err)
			return err
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if jsonOut {
			return printJSON(map[string]string{"address": addr.Hex()})
		}
		fmt.Println(addr.Hex())
		return nil
	},
}

var contentidCmd = &cobra.Command{
	Use:   "contentid",
	Short: "Encode and decode content identifiers",
}

var contentidDecodeCmd = &cobra.Command{
	Use:   "decode <value>",
	Short: "Decode a content id (object JSON, base64url, or did:bubble:) and print its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := contentid.Parse(args[0])
		if err != nil {
			printError(err)
			return err
		}
		if jsonOut {
			return printJSON(id)
		}
		fmt.Printf("chain:    %d\n", id.Chain)
		fmt.Printf("contract: %s\n", id.Contract)
		fmt.Printf("provider: %s\n", id.Provider)
		if id.File != nil {
			fmt.Printf("file:     %s\n", id.File.String())
		}
		return nil
	},
}

var contentidEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a content id from flags and print its base64url and did:bubble: forms",
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, _ := cmd.Flags().GetUint64("chain-id")
		contract, _ := cmd.Flags().GetString("contract")
		provider, _ := cmd.Flags().GetString("provider")

		id, err := contentid.New(chain, contract, provider, nil)
		if err != nil {
			printError(err)
			return err
		}
		encoded, err := id.String()
		if err != nil {
			printError(err)
			return err
		}
		did, err := id.DID()
		if err != nil {
			printError(err)
			return err
		}
		if jsonOut {
			return printJSON(map[string]string{"base64url": encoded, "did": did})
		}
		fmt.Printf("base64url: %s\n", encoded)
		fmt.Printf("did:       %s\n", did)
		return nil
	},
}

var sigCmd = &cobra.Command{
	Use:   "sig",
	Short: "Inspect signatures",
}

var sigVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recover the signatory of a plain/eip191/eip712 signature over raw request fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		method, _ := cmd.Flags().GetString("method")
		nonce, _ := cmd.Flags().GetString("nonce")
		contract, _ := cmd.Flags().GetString("contract")
		file, _ := cmd.Flags().GetString("file")
		data, _ := cmd.Flags().GetString("data")
		timestamp, _ := cmd.Flags().GetInt64("timestamp")
		signature, _ := cmd.Flags().GetString("signature")

		payload := sig.RequestPayload{
			Version:   1,
			Method:    method,
			Timestamp: timestamp,
			Nonce:     nonce,
			ChainId:   chainID,
			Contract:  contract,
			File:      file,
			Data:      data,
		}
		addr, err := sig.Recover(payload, sig.Signature{Kind: sig.Kind(kind), Bytes: signature})
		if err != nil {
			printError(err)
			return err
		}
		if jsonOut {
			return printJSON(map[string]string{"signatory": addr.Hex()})
		}
		fmt.Println(addr.Hex())
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysAddressCmd)

	contentidEncodeCmd.Flags().Uint64("chain-id", 1, "chain id")
	contentidEncodeCmd.Flags().String("contract", "", "access control contract address")
	contentidEncodeCmd.Flags().String("provider", "", "provider URL")
	_ = contentidEncodeCmd.MarkFlagRequired("contract")
	_ = contentidEncodeCmd.MarkFlagRequired("provider")
	contentidCmd.AddCommand(contentidDecodeCmd, contentidEncodeCmd)

	sigVerifyCmd.Flags().String("kind", "eip191", "plain | eip191 | eip712")
	sigVerifyCmd.Flags().String("method", "", "RPC method the signature covers")
	sigVerifyCmd.Flags().String("nonce", "", "request nonce")
	sigVerifyCmd.Flags().Uint64Var(&chainID, "chain-id", 1, "chain id")
	sigVerifyCmd.Flags().String("contract", "", "access control contract address")
	sigVerifyCmd.Flags().String("file", "", "file path, if any")
	sigVerifyCmd.Flags().String("data", "", "data field, if any")
	sigVerifyCmd.Flags().Int64("timestamp", 0, "request timestamp (ms)")
	sigVerifyCmd.Flags().String("signature", "", "hex-encoded signature bytes")
	_ = sigVerifyCmd.MarkFlagRequired("method")
	_ = sigVerifyCmd.MarkFlagRequired("signature")
	sigCmd.AddCommand(sigVerifyCmd)

	rootCmd.AddCommand(keysCmd, contentidCmd, sigCmd)
}
