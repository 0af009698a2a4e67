// Package sig implements the three Bubble Protocol signature schemes
// (plain, EIP-191, EIP-712) and one-level signed delegation.
package sig

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/guardian/eip712"
)

// Kind identifies which of the three signing schemes produced a
// signature.
type Kind string

const (
	KindPlain  Kind = "plain"
	KindEIP191 Kind = "eip191"
	KindEIP712 Kind = "eip712"
)

// PublicSentinel is the special signature value that bypasses recovery
// and assigns a random synthetic address to the request.
const PublicSentinel = "public"

// Signature is the wire signature envelope: {kind, bytes, delegation?}.
type Signature struct {
	Kind       Kind         `json:"kind"`
	Bytes      string       `json:"bytes"` // hex-encoded 65 bytes, or "public"
	Delegation *Delegation  `json:"delegation,omitempty"`
}

// ScopeKind distinguishes the two delegation scope shapes.
type ScopeKind string

const (
	ScopeContractPermission ScopeKind = "ContractPermission"
	ScopeBubblePermission   ScopeKind = "BubblePermission"
)

// Scope restricts a delegation to a chain+contract, or to a specific
// bubble (chain+contract+provider).
type Scope struct {
	Type     ScopeKind `json:"type"`
	Chain    uint64    `json:"chain"`
	Contract string    `json:"contract"`
	Provider string    `json:"provider,omitempty"`
}

// Admits reports whether the scope permits acting on (chain, contract,
// provider). BubblePermission requires an exact provider string match,
// including any trailing slash, preserved without
// normalization.
func (s Scope) Admits(chain uint64, contract, provider string) bool {
	if s.Chain != chain || !sameAddress(s.Contract, contract) {
		return false
	}
	switch s.Type {
	case ScopeContractPermission:
		return true
	case ScopeBubblePermission:
		return s.Provider == provider
	default:
		return false
	}
}

func sameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// NoExpiry is the sentinel for an unbounded delegation lifetime.
const NoExpiry int64 = -1

// Delegation is a signed, one-level grant allowing delegate to act as the
// delegator within permissions, until expires.
type Delegation struct {
	Version   uint64    `json:"version"`
	Delegate  string    `json:"delegate"`
	Expires   int64     `json:"expires"` // NoExpiry for infinite
	AllScopes bool      `json:"-"`
	Scopes    []Scope   `json:"-"`
	Signature Signature `json:"signature"`
}

// Expired reports whether expires (unix ms) has passed at referenceMs.
func (d *Delegation) Expired(referenceMs int64) bool {
	if d.Expires == NoExpiry {
		return false
	}
	return referenceMs > d.Expires
}

// Admits reports whether the delegation's scope permits acting on
// (chain, contract, provider).
func (d *Delegation) Admits(chain uint64, contract, provider string) bool {
	if d.AllScopes {
		return true
	}
	for _, s := range d.Scopes {
		if s.Admits(chain, contract, provider) {
			return true
		}
	}
	return false
}

// wireDelegation mirrors Delegation's JSON shape: expires is either a
// number or null (infinite), permissions is either the string "All" or an
// array of Scope.
type wireDelegation struct {
	Version     uint64          `json:"version"`
	Delegate    string          `json:"delegate"`
	Expires     *int64          `json:"expires"`
	Permissions json.RawMessage `json:"permissions"`
	Signature   Signature       `json:"signature"`
}

// MarshalJSON renders the delegation's expires/permissions union fields in
// their wire shapes.
func (d Delegation) MarshalJSON() ([]byte, error) {
	w := wireDelegation{Version: d.Version, Delegate: d.Delegate, Signature: d.Signature}
	if d.Expires != NoExpiry {
		e := d.Expires
		w.Expires = &e
	}
	if d.AllScopes {
		raw, err := json.Marshal("All")
		if err != nil {
			return nil, err
		}
		w.Permissions = raw
	} else {
		raw, err := json.Marshal(d.Scopes)
		if err != nil {
			return nil, err
		}
		w.Permissions = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the delegation's expires/permissions union fields
// from their wire shapes.
func (d *Delegation) UnmarshalJSON(data []byte) error {
	var w wireDelegation
	if err := json.Unmarshal(data, &w); err != nil {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "invalid delegation")
	}

	d.Version = w.Version
	d.Delegate = w.Delegate
	d.Signature = w.Signature
	if w.Expires == nil {
		d.Expires = NoExpiry
	} else {
		d.Expires = *w.Expires
	}

	trimmed := strings.TrimSpace(string(w.Permissions))
	if trimmed == `"All"` {
		d.AllScopes = true
		d.Scopes = nil
		return nil
	}
	var scopes []Scope
	if err := json.Unmarshal(w.Permissions, &scopes); err != nil {
		return bubbleerr.New(bubbleerr.CodeInvalidParams, "invalid delegation permissions")
	}
	d.AllScopes = false
	d.Scopes = scopes
	return nil
}

// RequestPayload is the canonical content signed for a BubbleDataRequest:
// the request envelope minus the signature field.
type RequestPayload struct {
	Version   uint64
	Method    string
	Timestamp int64
	Nonce     string
	ChainId   uint64
	Contract  string // hex address
	File      string // "" when absent
	Data      string // "" when absent
	Options   json.RawMessage
}

// canonicalJSON produces the deterministic JSON payload both plain and
// EIP-191 signatures are computed over: method and all params except
// signature, with options omitted when absent.
func (r RequestPayload) canonicalJSON() ([]byte, error) {
	type ordered struct {
		Version   uint64          `json:"version"`
		Method    string          `json:"method"`
		Timestamp int64           `json:"timestamp"`
		Nonce     string          `json:"nonce"`
		ChainId   uint64          `json:"chainId"`
		Contract  string          `json:"contract"`
		File      string          `json:"file,omitempty"`
		Data      string          `json:"data,omitempty"`
		Options   json.RawMessage `json:"options,omitempty"`
	}
	return json.Marshal(ordered{
		Version:   r.Version,
		Method:    r.Method,
		Timestamp: r.Timestamp,
		Nonce:     r.Nonce,
		ChainId:   r.ChainId,
		Contract:  r.Contract,
		File:      r.File,
		Data:      r.Data,
		Options:   r.Options,
	})
}

func (r RequestPayload) optionsString() string {
	if len(r.Options) == 0 {
		return "{}"
	}
	return string(r.Options)
}

// Recover recovers the address that produced sig over payload, using the
// scheme named by sig.Kind. The "public" sentinel short-circuits to a
// fresh random address rather than performing recovery.
func Recover(payload RequestPayload, signature Signature) (common.Address, error) {
	if signature.Bytes == PublicSentinel {
		return randomAddress()
	}

	sigBytes, err := decodeSigBytes(signature.Bytes)
	if err != nil {
		return common.Address{}, err
	}

	switch signature.Kind {
	case KindPlain:
		raw, err := payload.canonicalJSON()
		if err != nil {
			return common.Address{}, err
		}
		digest := crypto.Keccak256(raw)
		return recoverFromDigest(digest, sigBytes)

	case KindEIP191:
		raw, err := payload.canonicalJSON()
		if err != nil {
			return common.Address{}, err
		}
		digest := eip191Digest(raw)
		return recoverFromDigest(digest, sigBytes)

	case KindEIP712:
		digest := eip712.DigestDataRequest(eip712.DataRequest{
			Purpose:   "BubbleDataRequest",
			Version:   new(big.Int).SetUint64(payload.Version),
			Method:    payload.Method,
			Timestamp: big.NewInt(payload.Timestamp),
			Nonce:     payload.Nonce,
			ChainId:   new(big.Int).SetUint64(payload.ChainId),
			Contract:  common.HexToAddress(payload.Contract),
			File:      payload.File,
			Data:      payload.Data,
			Options:   payload.optionsString(),
		})
		return recoverFromDigest(digest.Bytes(), sigBytes)

	default:
		return common.Address{}, fmt.Errorf("unknown signature kind %q", signature.Kind)
	}
}

// Sign produces a Signature over payload using key and scheme kind. It is
// the client-side counterpart to Recover, used by callers that hold a
// private key rather than a wire signature.
func Sign(payload RequestPayload, kind Kind, key *ecdsa.PrivateKey) (Signature, error) {
	var digest []byte
	switch kind {
	case KindPlain:
		raw, err := payload.canonicalJSON()
		if err != nil {
			return Signature{}, err
		}
		digest = crypto.Keccak256(raw)

	case KindEIP191:
		raw, err := payload.canonicalJSON()
		if err != nil {
			return Signature{}, err
		}
		digest = eip191Digest(raw)

	case KindEIP712:
		d := eip712.DigestDataRequest(eip712.DataRequest{
			Purpose:   "BubbleDataRequest",
			Version:   new(big.Int).SetUint64(payload.Version),
			Method:    payload.Method,
			Timestamp: big.NewInt(payload.Timestamp),
			Nonce:     payload.Nonce,
			ChainId:   new(big.Int).SetUint64(payload.ChainId),
			Contract:  common.HexToAddress(payload.Contract),
			File:      payload.File,
			Data:      payload.Data,
			Options:   payload.optionsString(),
		})
		digest = d.Bytes()

	default:
		return Signature{}, fmt.Errorf("unknown signature kind %q", kind)
	}

	sigBytes, err := crypto.Sign(digest, key)
	if err != nil {
		return Signature{}, fmt.Errorf("signing payload: %w", err)
	}
	return Signature{Kind: kind, Bytes: "0x" + hex.EncodeToString(sigBytes)}, nil
}

// RecoverDelegator recovers the address that signed a Delegation, using
// the same three-scheme rule as request signatures.
func RecoverDelegator(chainID uint64, d *Delegation) (common.Address, error) {
	if d.Signature.Bytes == PublicSentinel {
		return randomAddress()
	}
	sigBytes, err := decodeSigBytes(d.Signature.Bytes)
	if err != nil {
		return common.Address{}, err
	}

	perms := make([]eip712.Permission, 0, len(d.Scopes))
	for _, s := range d.Scopes {
		perms = append(perms, eip712.Permission{
			Type:     string(s.Type),
			Chain:    new(big.Int).SetUint64(s.Chain),
			Contract: common.HexToAddress(s.Contract),
			Provider: s.Provider,
		})
	}

	msg := eip712.Delegate{
		Purpose:     "BubbleDelegate",
		Version:     new(big.Int).SetUint64(d.Version),
		Delegate:    common.HexToAddress(d.Delegate),
		Expires:     expiresBig(d.Expires),
		Permissions: perms,
	}

	switch d.Signature.Kind {
	case KindEIP712:
		digest := eip712.DigestDelegate(new(big.Int).SetUint64(chainID), msg)
		return recoverFromDigest(digest.Bytes(), sigBytes)
	case KindPlain:
		raw, _ := json.Marshal(delegationCanonical(d))
		digest := crypto.Keccak256(raw)
		return recoverFromDigest(digest, sigBytes)
	case KindEIP191:
		raw, _ := json.Marshal(delegationCanonical(d))
		digest := eip191Digest(raw)
		return recoverFromDigest(digest, sigBytes)
	default:
		return common.Address{}, fmt.Errorf("unknown signature kind %q", d.Signature.Kind)
	}
}

func delegationCanonical(d *Delegation) map[string]interface{} {
	return map[string]interface{}{
		"version":     d.Version,
		"delegate":    d.Delegate,
		"expires":     d.Expires,
		"allScopes":   d.AllScopes,
		"permissions": d.Scopes,
	}
}

func expiresBig(expires int64) *big.Int {
	if expires == NoExpiry {
		return new(big.Int).SetInt64(0).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	}
	return big.NewInt(expires)
}

func eip191Digest(raw []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(raw))
	return crypto.Keccak256([]byte(prefix), raw)
}

func decodeSigBytes(hexOrRaw string) ([]byte, error) {
	b, err := hexDecode(hexOrRaw)
	if err != nil {
		return nil, bubbleerr.AuthenticationFailure(err)
	}
	if len(b) != 65 {
		return nil, bubbleerr.AuthenticationFailure(fmt.Errorf("signature must be 65 bytes, got %d", len(b)))
	}
	return b, nil
}

func hexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func recoverFromDigest(digest []byte, sig []byte) (common.Address, error) {
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pubBytes, err := crypto.Ecrecover(digest, normalized)
	if err != nil {
		return common.Address{}, bubbleerr.AuthenticationFailure(err)
	}
	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return common.Address{}, bubbleerr.AuthenticationFailure(err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func randomAddress() (common.Address, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
