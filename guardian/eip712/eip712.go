// Package eip712 implements typed-data digest construction for the two
// Bubble Protocol structs signed under EIP-712: BubbleDataRequest and
// BubbleDelegate. The encoding (domain separator +
// hashStruct) follows go-ethereum's signer/core TypedData implementation,
// generalized here from account-backed signing to pure digest
// construction for signature recovery.
package eip712

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// domainTypeHash is the EIP-712 domain type hash for
// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract).
var domainTypeHash = crypto.Keccak256Hash([]byte(
	"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
))

// VerifyingContract is the fixed zero address used as the EIP-712
// verifyingContract for all Bubble Protocol signed structs.
var VerifyingContract = common.Address{}

const (
	domainName    = "BubbleProtocol"
	domainVersion = "1.0"
)

// DataRequestTypeHash is the type hash for:
//
//	BubbleDataRequest(purpose string, version uint256, method string,
//	  timestamp uint256, nonce string, chainId uint256, contract address,
//	  file string, data string, options string)
var DataRequestTypeHash = crypto.Keccak256Hash([]byte(
	"BubbleDataRequest(string purpose,uint256 version,string method,uint256 timestamp,string nonce,uint256 chainId,address contract,string file,string data,string options)",
))

// DelegateTypeHash is the type hash for:
//
//	BubbleDelegate(purpose string, version uint256, delegate address,
//	  expires uint256, permissions Permission[])
// together with its referenced Permission sub-struct, per EIP-712's
// "referenced types appended alphabetically" rule.
var DelegateTypeHash = crypto.Keccak256Hash([]byte(
	"BubbleDelegate(string purpose,uint256 version,address delegate,uint256 expires,Permission[] permissions)Permission(string type,uint256 chain,address contract,string provider)",
))

// PermissionTypeHash is the type hash for:
//
//	Permission(string type, uint256 chain, address contract, string provider)
var PermissionTypeHash = crypto.Keccak256Hash([]byte(
	"Permission(string type,uint256 chain,address contract,string provider)",
))

// DataRequest is the message content hashed for a BubbleDataRequest
// signature, the canonical serialization of a request envelope minus its
// signature field.
type DataRequest struct {
	Purpose   string
	Version   *big.Int
	Method    string
	Timestamp *big.Int
	Nonce     string
	ChainId   *big.Int
	Contract  common.Address
	File      string
	Data      string
	Options   string // JSON-stringified options, or "{}" when absent
}

// Permission mirrors the wire Scope: {ContractPermission|BubblePermission}.
type Permission struct {
	Type     string // "ContractPermission" or "BubblePermission"
	Chain    *big.Int
	Contract common.Address
	Provider string // empty for ContractPermission
}

// Delegate is the message content hashed for a BubbleDelegate signature.
type Delegate struct {
	Purpose     string
	Version     *big.Int
	Delegate    common.Address
	Expires     *big.Int // the maximum uint256 (2^256-1) stands for "no expiry"
	Permissions []Permission
}

func pad32(n *big.Int) []byte {
	out := make([]byte, 32)
	if n == nil {
		return out
	}
	b := n.Bytes()
	copy(out[32-len(b):], b)
	return out
}

func addrPad(a common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], a.Bytes())
	return out
}

func hashString(s string) [32]byte {
	return crypto.Keccak256Hash([]byte(s))
}

func domainSeparator(chainID *big.Int) common.Hash {
	enc := make([]byte, 0, 5*32)
	enc = append(enc, domainTypeHash.Bytes()...)
	nameHash := hashString(domainName)
	versionHash := hashString(domainVersion)
	enc = append(enc, nameHash[:]...)
	enc = append(enc, versionHash[:]...)
	enc = append(enc, pad32(chainID)...)
	enc = append(enc, addrPad(VerifyingContract)...)
	return crypto.Keccak256Hash(enc)
}

// HashDataRequest returns hashStruct(BubbleDataRequest), i.e.
// keccak256(typeHash ‖ encodeData(message)).
func HashDataRequest(r DataRequest) common.Hash {
	enc := make([]byte, 0, 10*32)
	enc = append(enc, DataRequestTypeHash.Bytes()...)
	purposeHash := hashString(r.Purpose)
	methodHash := hashString(r.Method)
	nonceHash := hashString(r.Nonce)
	fileHash := hashString(r.File)
	dataHash := hashString(r.Data)
	optionsHash := hashString(r.Options)
	enc = append(enc, purposeHash[:]...)
	enc = append(enc, pad32(r.Version)...)
	enc = append(enc, methodHash[:]...)
	enc = append(enc, pad32(r.Timestamp)...)
	enc = append(enc, nonceHash[:]...)
	enc = append(enc, pad32(r.ChainId)...)
	enc = append(enc, addrPad(r.Contract)...)
	enc = append(enc, fileHash[:]...)
	enc = append(enc, dataHash[:]...)
	enc = append(enc, optionsHash[:]...)
	return crypto.Keccak256Hash(enc)
}

// DigestDataRequest returns the full EIP-712 signing digest
// keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(message)).
func DigestDataRequest(r DataRequest) common.Hash {
	ds := domainSeparator(r.ChainId)
	hs := HashDataRequest(r)
	return finalDigest(ds, hs)
}

func hashPermission(p Permission) common.Hash {
	enc := make([]byte, 0, 4*32)
	enc = append(enc, PermissionTypeHash.Bytes()...)
	typeHash := hashString(p.Type)
	providerHash := hashString(p.Provider)
	enc = append(enc, typeHash[:]...)
	enc = append(enc, pad32(p.Chain)...)
	enc = append(enc, addrPad(p.Contract)...)
	enc = append(enc, providerHash[:]...)
	return crypto.Keccak256Hash(enc)
}

// HashDelegate returns hashStruct(BubbleDelegate), i.e.
// keccak256(typeHash ‖ encodeData(message)).
func HashDelegate(d Delegate) common.Hash {
	enc := make([]byte, 0, 5*32)
	enc = append(enc, DelegateTypeHash.Bytes()...)
	purposeHash := hashString(d.Purpose)
	enc = append(enc, purposeHash[:]...)
	enc = append(enc, pad32(d.Version)...)
	enc = append(enc, addrPad(d.Delegate)...)
	enc = append(enc, pad32(d.Expires)...)

	permsBuf := make([]byte, 0, len(d.Permissions)*32)
	for _, p := range d.Permissions {
		h := hashPermission(p)
		permsBuf = append(permsBuf, h.Bytes()...)
	}
	permsHash := crypto.Keccak256Hash(permsBuf)
	enc = append(enc, permsHash.Bytes()...)
	return crypto.Keccak256Hash(enc)
}

// DigestDelegate returns the full EIP-712 signing digest for a
// BubbleDelegate under the domain of the given chainID (sig.RecoverDelegator
// passes the chainId of the request the delegation is attached to).
func DigestDelegate(chainID *big.Int, d Delegate) common.Hash {
	ds := domainSeparator(chainID)
	hs := HashDelegate(d)
	return finalDigest(ds, hs)
}

func finalDigest(domainSep, structHash common.Hash) common.Hash {
	buf := make([]byte, 0, 2+32+32)
	buf = append(buf, 0x19, 0x01)
	buf = append(buf, domainSep.Bytes()...)
	buf = append(buf, structHash.Bytes()...)
	return crypto.Keccak256Hash(buf)
}
