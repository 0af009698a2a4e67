package cmd

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/ethdenver2026/gateway/rpc"
	"github.com/ethdenver2026/gateway/sig"
)

// optionsJSON marshals an option map into the raw form signedCall and the
// wire envelope expect, dropping it entirely when every value is zero.
func optionsJSON(opts map[string]interface{}) json.RawMessage {
	allZero := true
	for _, v := range opts {
		if v != nil && !reflect.ValueOf(v).IsZero() {
			allZero = false
			break
		}
	}
	if allZero {
		return nil
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil
	}
	return raw
}

// loadKey parses the --key flag (or BUBBLECTL_PRIVATE_KEY) into a signing
// key, failing clearly when neither is set.
func loadKey() (*ecdsa.PrivateKey, error) {
	if privateKey == "" {
		return nil, fmt.Errorf("no signing key: pass --key or set BUBBLECTL_PRIVATE_KEY")
	}
	return crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
}

// signedCall signs a request payload with the local key and posts it to
// the configured server, unmarshalling the result into out.
func signedCall(method rpc.Method, chainID uint64, contract, file, data string, options json.RawMessage, out interface{}) error {
	key, err := loadKey()
	if err != nil {
		return err
	}

	payload := sig.RequestPayload{
		Version:   1,
		Method:    string(method),
		Timestamp: time.Now().UnixMilli(),
		Nonce:     uuid.NewString(),
		ChainId:   chainID,
		Contract:  contract,
		File:      file,
		Data:      data,
		Options:   options,
	}

	signature, err := sig.Sign(payload, sig.KindEIP191, key)
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	params := rpc.Params{
		Version:   payload.Version,
		Timestamp: payload.Timestamp,
		Nonce:     payload.Nonce,
		ChainId:   payload.ChainId,
		Contract:  payload.Contract,
		Options:   options,
		Signature: signature,
	}
	if file != "" {
		params.File = &file
	}
	if data != "" {
		params.Data = &data
	}

	envelope := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, serverURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var wire struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return fmt.Errorf("parsing response: %w (body: %s)", err, string(respBody))
	}
	if wire.Error != nil {
		return fmt.Errorf("guardian error %d: %s", wire.Error.Code, wire.Error.Message)
	}
	if out != nil && len(wire.Result) > 0 {
		return json.Unmarshal(wire.Result, out)
	}
	return nil
}
