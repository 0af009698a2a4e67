// Package blockchain implements the BlockchainProvider capability the
// Guardian drives to resolve chain id and query ACC permissions.
package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ethdenver2026/gateway/bubbleerr"
)

// Provider is the narrow capability contract the Guardian consumes.
// Implementations own their own caching.
type Provider interface {
	ChainID(ctx context.Context) (uint64, error)
	GetPermissions(ctx context.Context, contract, signatory common.Address, pathHash common.Hash) (*big.Int, error)
}

// accPermissionsABI is the minimal ABI surface for an access control
// contract's permissions query: getPermissions(address,bytes32) -> uint256.
const accPermissionsABI = `[{
	"name":"getPermissions",
	"type":"function",
	"stateMutability":"view",
	"inputs":[{"name":"account","type":"address"},{"name":"contentId","type":"bytes32"}],
	"outputs":[{"name":"","type":"uint256"}]
}]`

// RPCProvider is the production Provider backed by an Ethereum JSON-RPC
// endpoint via go-ethereum's ethclient.
type RPCProvider struct {
	client  *ethclient.Client
	abi     abi.ABI
	chainID uint64
}

// NewRPCProvider dials url and resolves the chain id once at startup.
func NewRPCProvider(ctx context.Context, url string) (*RPCProvider, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, bubbleerr.BlockchainUnavailable(err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(accPermissionsABI))
	if err != nil {
		return nil, fmt.Errorf("parse ACC ABI: %w", err)
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, bubbleerr.BlockchainUnavailable(err)
	}

	return &RPCProvider{client: client, abi: parsedABI, chainID: id.Uint64()}, nil
}

// ChainID returns the chain id resolved at startup.
func (p *RPCProvider) ChainID(_ context.Context) (uint64, error) {
	return p.chainID, nil
}

// GetPermissions queries the ACC at contract for signatory's permissions
// over pathHash.
func (p *RPCProvider) GetPermissions(ctx context.Context, contract, signatory common.Address, pathHash common.Hash) (*big.Int, error) {
	callData, err := p.abi.Pack("getPermissions", signatory, pathHash)
	if err != nil {
		return nil, fmt.Errorf("pack getPermissions call: %w", err)
	}

	result, err := p.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, bubbleerr.BlockchainUnavailable(err)
	}

	outputs, err := p.abi.Unpack("getPermissions", result)
	if err != nil || len(outputs) != 1 {
		return nil, bubbleerr.BlockchainUnavailable(fmt.Errorf("unexpected getPermissions return shape: %w", err))
	}
	word, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, bubbleerr.BlockchainUnavailable(fmt.Errorf("getPermissions did not return uint256"))
	}
	return word, nil
}

// cacheEntry holds a cached permission word with its insertion time.
type cacheEntry struct {
	word    *big.Int
	cachedAt time.Time
}

type cacheKey struct {
	contract common.Address
	signatory common.Address
	pathHash common.Hash
}

// Cached decorates a Provider with a short-lived permissions cache, as the
// Guardian expects every BlockchainProvider to provide. Chain state
// changes are not pushed, so entries expire after ttl; Invalidate drops a
// single entry early.
type Cached struct {
	inner Provider
	ttl   time.Duration

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	chainID uint64
	haveID  bool
}

// NewCached wraps inner with a permissions cache of the given ttl.
func NewCached(inner Provider, ttl time.Duration) *Cached {
	return &Cached{inner: inner, ttl: ttl, entries: make(map[cacheKey]cacheEntry)}
}

// ChainID caches the resolved chain id for the lifetime of the process —
// it cannot legitimately change underneath a running server.
func (c *Cached) ChainID(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	if c.haveID {
		id := c.chainID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	id, err := c.inner.ChainID(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.chainID = id
	c.haveID = true
	c.mu.Unlock()
	return id, nil
}

// GetPermissions serves from cache within ttl, otherwise queries inner and
// refreshes the entry.
func (c *Cached) GetPermissions(ctx context.Context, contract, signatory common.Address, pathHash common.Hash) (*big.Int, error) {
	key := cacheKey{contract: contract, signatory: signatory, pathHash: pathHash}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && time.Since(entry.cachedAt) < c.ttl {
		c.mu.Unlock()
		return entry.word, nil
	}
	c.mu.Unlock()

	word, err := c.inner.GetPermissions(ctx, contract, signatory, pathHash)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{word: word, cachedAt: time.Now()}
	c.mu.Unlock()
	return word, nil
}

// Invalidate drops any cached entry for (contract, signatory, pathHash), so
// the next GetPermissions call for that key queries inner again.
func (c *Cached) Invalidate(contract, signatory common.Address, pathHash common.Hash) {
	c.mu.Lock()
	delete(c.entries, cacheKey{contract: contract, signatory: signatory, pathHash: pathHash})
	c.mu.Unlock()
}
