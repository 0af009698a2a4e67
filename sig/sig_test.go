package sig

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethdenver2026/gateway/guardian/eip712"
)

func samplePayload() RequestPayload {
	return RequestPayload{
		Version:   1,
		Method:    "write",
		Timestamp: 1700000000000,
		Nonce:     "nonce-1",
		ChainId:   1,
		Contract:  "0xAbC1230000000000000000000000000000000000",
		File:      "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef/notes.txt",
		Data:      "hello",
	}
}

func TestSignRecoverRoundTripPlain(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	payload := samplePayload()
	signature, err := Sign(payload, KindPlain, key)
	require.NoError(t, err)

	got, err := Recover(payload, signature)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSignRecoverRoundTripEIP191(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	payload := samplePayload()
	signature, err := Sign(payload, KindEIP191, key)
	require.NoError(t, err)

	got, err := Recover(payload, signature)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSignRecoverRoundTripEIP712(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	payload := samplePayload()
	signature, err := Sign(payload, KindEIP712, key)
	require.NoError(t, err)

	got, err := Recover(payload, signature)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverDetectsTamperedPayload(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	payload := samplePayload()
	signature, err := Sign(payload, KindEIP191, key)
	require.NoError(t, err)

	tampered := payload
	tampered.Data = "goodbye"

	got, err := Recover(tampered, signature)
	require.NoError(t, err) // recovery always succeeds, it just returns the wrong address
	assert.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey), got)
}

func TestPublicSentinelBypassesRecovery(t *testing.T) {
	payload := samplePayload()
	addr1, err := Recover(payload, Signature{Kind: KindPlain, Bytes: PublicSentinel})
	require.NoError(t, err)
	addr2, err := Recover(payload, Signature{Kind: KindPlain, Bytes: PublicSentinel})
	require.NoError(t, err)
	assert.NotEqual(t, addr1, addr2, "public sentinel assigns a fresh synthetic address each call")
}

func TestScopeAdmitsExactProviderMatchOnly(t *testing.T) {
	scope := Scope{Type: ScopeBubblePermission, Chain: 1, Contract: "0xAbC1230000000000000000000000000000000000", Provider: "https://example.com"}
	assert.True(t, scope.Admits(1, "0xAbC1230000000000000000000000000000000000", "https://example.com"))
	assert.False(t, scope.Admits(1, "0xAbC1230000000000000000000000000000000000", "https://example.com/"),
		"provider match must be exact per the no-normalization decision")
}

func TestScopeContractPermissionIgnoresProvider(t *testing.T) {
	scope := Scope{Type: ScopeContractPermission, Chain: 1, Contract: "0xAbC1230000000000000000000000000000000000"}
	assert.True(t, scope.Admits(1, "0xAbC1230000000000000000000000000000000000", "anything"))
}

func TestDelegationExpiredAtBoundary(t *testing.T) {
	d := &Delegation{Expires: 1000}
	assert.False(t, d.Expired(999))
	assert.True(t, d.Expired(1001))
}

func TestDelegationNeverExpires(t *testing.T) {
	d := &Delegation{Expires: NoExpiry}
	assert.False(t, d.Expired(99999999999999))
}

func TestDelegationJSONRoundTripAllScopes(t *testing.T) {
	d := Delegation{
		Version:   1,
		Delegate:  "0xAbC1230000000000000000000000000000000000",
		Expires:   NoExpiry,
		AllScopes: true,
		Signature: Signature{Kind: KindEIP191, Bytes: "0xdead"},
	}
	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"All"`)
	assert.Contains(t, string(raw), `"expires":null`)

	var decoded Delegation
	require.NoError(t, decoded.UnmarshalJSON(raw))
	assert.True(t, decoded.AllScopes)
	assert.Equal(t, NoExpiry, decoded.Expires)
}

func TestDelegationJSONRoundTripScopedPermissions(t *testing.T) {
	d := Delegation{
		Version:  1,
		Delegate: "0xAbC1230000000000000000000000000000000000",
		Expires:  1700000000000,
		Scopes: []Scope{
			{Type: ScopeBubblePermission, Chain: 1, Contract: "0xAbC1230000000000000000000000000000000000", Provider: "https://example.com"},
		},
		Signature: Signature{Kind: KindEIP191, Bytes: "0xdead"},
	}
	raw, err := d.MarshalJSON()
	require.NoError(t, err)

	var decoded Delegation
	require.NoError(t, decoded.UnmarshalJSON(raw))
	assert.False(t, decoded.AllScopes)
	require.Len(t, decoded.Scopes, 1)
	assert.Equal(t, d.Scopes[0], decoded.Scopes[0])
}

func TestRecoverDelegatorRoundTripEIP712(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	d := &Delegation{
		Version:   1,
		Delegate:  "0xAbC1230000000000000000000000000000000000",
		Expires:   NoExpiry,
		AllScopes: true,
	}

	msg := eip712.Delegate{
		Purpose:  "BubbleDelegate",
		Version:  new(big.Int).SetUint64(d.Version),
		Delegate: common.HexToAddress(d.Delegate),
		Expires:  new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
	}
	digest := eip712.DigestDelegate(big.NewInt(1), msg)
	sigBytes, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	d.Signature = Signature{Kind: KindEIP712, Bytes: "0x" + common.Bytes2Hex(sigBytes)}

	got, err := RecoverDelegator(1, d)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
