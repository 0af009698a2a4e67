// Package guardian implements the server-side authorization engine: the
// state machine that validates, authenticates, authorizes, and dispatches
// every Bubble Protocol request.
package guardian

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethdenver2026/gateway/blockchain"
	"github.com/ethdenver2026/gateway/bpath"
	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/codec"
	"github.com/ethdenver2026/gateway/dataserver"
	"github.com/ethdenver2026/gateway/permissions"
	"github.com/ethdenver2026/gateway/rpc"
	"github.com/ethdenver2026/gateway/sig"
)

// Config groups a Guardian's dependencies and tunables.
type Config struct {
	Blockchain  blockchain.Provider
	DataServer  dataserver.Server
	ProviderURL string        // this server's own provider URL, for delegation scope checks
	ReplayWindow time.Duration // default 5 minutes if zero
	ClockSkew    time.Duration // default 30 seconds if zero
	Logger       *slog.Logger
}

// Guardian is the authorization engine. It owns the nonce/replay cache; the
// BlockchainProvider and DataServer own their own respective state.
type Guardian struct {
	chain       blockchain.Provider
	data        dataserver.Server
	providerURL string
	nonces      *nonceCache
	skew        time.Duration
	log         *slog.Logger
	onNotify    dataserver.Listener
}

// OnNotify installs the callback subscription notifications are routed
// through. Transports call this once at startup to fan out over their own
// connections (e.g. WebSocket clients).
func (g *Guardian) OnNotify(listener dataserver.Listener) {
	g.onNotify = listener
}

// New constructs a Guardian from cfg, applying documented defaults.
func New(cfg Config) *Guardian {
	window := cfg.ReplayWindow
	if window == 0 {
		window = 5 * time.Minute
	}
	skew := cfg.ClockSkew
	if skew == 0 {
		skew = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guardian{
		chain:       cfg.Blockchain,
		data:        cfg.DataServer,
		providerURL: cfg.ProviderURL,
		nonces:      newNonceCache(window),
		skew:        skew,
		log:         logger,
	}
}

// Handle runs the full authorization algorithm for one request and returns
// its result, or a *bubbleerr.Error describing why it was rejected.
func (g *Guardian) Handle(ctx context.Context, method rpc.Method, p rpc.Params) (interface{}, error) {
	if err := g.validateEnvelope(method, p); err != nil {
		return nil, err
	}

	chainID, err := g.chain.ChainID(ctx)
	if err != nil {
		return nil, bubbleerr.BlockchainUnavailable(err)
	}
	if p.ChainId != chainID {
		return nil, bubbleerr.New(bubbleerr.CodeBlockchainNotSupported, "blockchain not supported")
	}

	path, err := g.parsePath(p)
	if err != nil {
		return nil, err
	}

	signatory, err := g.recoverSignatory(method, p)
	if err != nil {
		return nil, err
	}

	if g.nonces.Seen(signatory.Hex(), p.Nonce, time.UnixMilli(p.Timestamp)) {
		return nil, bubbleerr.AuthenticationFailure(nil)
	}

	contractAddr := common.HexToAddress(p.Contract)
	word, err := g.chain.GetPermissions(ctx, contractAddr, signatory, common.HexToHash(path.PermissionedPart()))
	if err != nil {
		return nil, bubbleerr.AsError(err)
	}
	bits := permissions.Decode(word)

	resolved := path.ApplyPermissions(bits, method == rpc.MethodTerminate)

	if bits.BubbleTerminated() {
		return g.handleTerminated(ctx, method, p)
	}

	if !resolved.Valid() {
		return nil, bubbleerr.New(bubbleerr.CodeInvalidParams, "invalid path for this bubble's current state")
	}

	if err := g.checkMethodPermission(method, resolved, bits); err != nil {
		return nil, err
	}

	return g.dispatch(ctx, method, p, path, resolved)
}

func (g *Guardian) validateEnvelope(method rpc.Method, p rpc.Params) error {
	if !rpc.IsKnownMethod(method) {
		return bubbleerr.New(bubbleerr.CodeMethodNotFound, "unknown method")
	}
	if p.Nonce == "" {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "missing nonce")
	}
	if err := g.checkTimestamp(p.Timestamp); err != nil {
		return err
	}
	if _, err := codec.NormalizeHexAddress(p.Contract); err != nil {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "invalid contract address")
	}
	if p.Signature.Bytes == "" {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "missing signature")
	}
	if rpc.RequiresFile(method) && (p.File == nil || *p.File == "") {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "missing file")
	}
	if rpc.RequiresData(method) && p.Data == nil {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "missing data")
	}
	return nil
}

// checkTimestamp enforces that p.Timestamp falls within the server's
// clock skew tolerance of the wall clock, anchoring the replay window
// on server time rather than letting a client claim an arbitrary
// timestamp alongside a fresh nonce.
func (g *Guardian) checkTimestamp(timestampMillis int64) error {
	delta := time.Since(time.UnixMilli(timestampMillis))
	if delta < 0 {
		delta = -delta
	}
	if delta > g.skew {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "timestamp outside allowed clock skew")
	}
	return nil
}

func (g *Guardian) parsePath(p rpc.Params) (*bpath.Path, error) {
	if p.File == nil || *p.File == "" {
		return bpath.Root(), nil
	}
	path, err := bpath.Parse(*p.File)
	if err != nil {
		return nil, bubbleerr.New(bubbleerr.CodeInvalidParams, "invalid file path")
	}
	return path, nil
}

func (g *Guardian) recoverSignatory(method rpc.Method, p rpc.Params) (common.Address, error) {
	payload := sig.RequestPayload{
		Version: p.Version, Method: string(method), Timestamp: p.Timestamp, Nonce: p.Nonce,
		ChainId: p.ChainId, Contract: p.Contract, Options: p.Options,
	}
	if p.File != nil {
		payload.File = *p.File
	}
	if p.Data != nil {
		payload.Data = *p.Data
	}

	signer, err := sig.Recover(payload, p.Signature)
	if err != nil {
		return common.Address{}, bubbleerr.AuthenticationFailure(err)
	}

	delegation := p.Signature.Delegation
	if delegation == nil {
		return signer, nil
	}

	if common.HexToAddress(delegation.Delegate) != signer {
		return common.Address{}, bubbleerr.AuthenticationFailure(nil)
	}

	delegator, err := sig.RecoverDelegator(p.ChainId, delegation)
	if err != nil {
		return common.Address{}, bubbleerr.AuthenticationFailure(err)
	}

	if delegation.Expired(timeNowMillis()) {
		return common.Address{}, bubbleerr.PermissionDenied()
	}
	if !delegation.Admits(p.ChainId, p.Contract, g.providerURL) {
		return common.Address{}, bubbleerr.PermissionDenied()
	}

	return delegator, nil
}

func timeNowMillis() int64 { return time.Now().UnixMilli() }

func (g *Guardian) handleTerminated(ctx context.Context, method rpc.Method, p rpc.Params) (interface{}, error) {
	opts := writeOptionsFromParams(p)
	if method == rpc.MethodTerminate {
		if err := g.data.Terminate(ctx, p.Contract, opts); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return nil, nil
	}

	_ = g.data.Terminate(ctx, p.Contract, dataserver.WriteOptions{Silent: true})
	return nil, bubbleerr.New(bubbleerr.CodeBubbleTerminated, "bubble terminated — retry terminate to reclaim storage")
}

func (g *Guardian) checkMethodPermission(method rpc.Method, r *bpath.Resolved, bits *permissions.Permissions) error {
	switch method {
	case rpc.MethodCreate:
		if !r.IsRoot() || !bits.CanWrite() {
			return bubbleerr.PermissionDenied()
		}
	case rpc.MethodWrite:
		if !r.IsFile() || !bits.CanWrite() {
			return bubbleerr.PermissionDenied()
		}
	case rpc.MethodAppend:
		if !r.IsFile() || !(bits.CanAppend() || bits.CanWrite()) {
			return bubbleerr.PermissionDenied()
		}
	case rpc.MethodRead, rpc.MethodList, rpc.MethodSubscribe:
		if !bits.CanRead() {
			return bubbleerr.PermissionDenied()
		}
	case rpc.MethodDelete:
		if r.IsRoot() || !bits.CanWrite() {
			return bubbleerr.PermissionDenied()
		}
	case rpc.MethodMkdir:
		if r.IsRoot() || !r.IsDirectory() || !bits.CanWrite() {
			return bubbleerr.PermissionDenied()
		}
	case rpc.MethodUnsubscribe:
		// unsubscribe carries no structural gate beyond read access to its subject.
		if !bits.CanRead() {
			return bubbleerr.PermissionDenied()
		}
	}
	return nil
}

func writeOptionsFromParams(p rpc.Params) dataserver.WriteOptions {
	var opts struct {
		Silent bool `json:"silent"`
		Force  bool `json:"force"`
	}
	if len(p.Options) > 0 {
		_ = json.Unmarshal(p.Options, &opts)
	}
	return dataserver.WriteOptions{Silent: opts.Silent, Force: opts.Force}
}
