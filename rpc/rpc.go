// Package rpc defines the JSON-RPC 2.0 envelope the Guardian is driven
// through, independent of whatever transport decoded it off the wire.
package rpc

import (
	"encoding/json"

	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/sig"
)

// Method names the Guardian accepts.
type Method string

const (
	MethodCreate      Method = "create"
	MethodWrite       Method = "write"
	MethodAppend      Method = "append"
	MethodRead        Method = "read"
	MethodDelete      Method = "delete"
	MethodMkdir       Method = "mkdir"
	MethodList        Method = "list"
	MethodSubscribe   Method = "subscribe"
	MethodUnsubscribe Method = "unsubscribe"
	MethodTerminate   Method = "terminate"
)

var knownMethods = map[Method]bool{
	MethodCreate: true, MethodWrite: true, MethodAppend: true, MethodRead: true,
	MethodDelete: true, MethodMkdir: true, MethodList: true,
	MethodSubscribe: true, MethodUnsubscribe: true, MethodTerminate: true,
}

// IsKnownMethod reports whether m is one of the ten Guardian operations.
func IsKnownMethod(m Method) bool { return knownMethods[m] }

// requiresFile is the set of methods for which params.file is mandatory.
var requiresFile = map[Method]bool{
	MethodWrite: true, MethodAppend: true, MethodRead: true, MethodDelete: true,
	MethodMkdir: true, MethodSubscribe: true, MethodUnsubscribe: true,
}

// RequiresFile reports whether m requires params.file to be present.
func RequiresFile(m Method) bool { return requiresFile[m] }

// RequiresData reports whether m requires params.data to be present.
func RequiresData(m Method) bool { return m == MethodWrite || m == MethodAppend }

// Envelope is the (method, params) pair a transport extracts from a
// JSON-RPC 2.0 request before handing it to the Guardian.
type Envelope struct {
	ID     json.RawMessage `json:"id"`
	Method Method          `json:"method"`
	Params Params          `json:"params"`
}

// Params is the request body the signature is computed over (minus the
// signature field itself).
type Params struct {
	Version   uint64          `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Nonce     string          `json:"nonce"`
	ChainId   uint64          `json:"chainId"`
	Contract  string          `json:"contract"`
	File      *string         `json:"file,omitempty"`
	Data      *string         `json:"data,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
	Signature sig.Signature   `json:"signature"`
}

// Response is the JSON-RPC 2.0 response envelope: exactly one of Result or
// Error is populated.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result interface{}     `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the wire shape of a Bubble Protocol / JSON-RPC error.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse renders err (wrapped to *bubbleerr.Error if necessary)
// into a Response carrying the same request id.
func NewErrorResponse(id json.RawMessage, err error) Response {
	be := bubbleerr.AsError(err)
	return Response{ID: id, Error: &ErrorObject{Code: int(be.Code), Message: be.Message}}
}

// NewResultResponse renders a successful result into a Response carrying
// the same request id. A nil result is sent as an explicit JSON null so the
// response still carries a result member.
func NewResultResponse(id json.RawMessage, result interface{}) Response {
	if result == nil {
		result = json.RawMessage("null")
	}
	return Response{ID: id, Result: result}
}
