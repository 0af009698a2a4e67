package blockchain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	chainID      uint64
	chainIDCalls int
	permCalls    int
	word         *big.Int
	err          error
}

func (f *fakeProvider) ChainID(context.Context) (uint64, error) {
	f.chainIDCalls++
	return f.chainID, nil
}

func (f *fakeProvider) GetPermissions(context.Context, common.Address, common.Address, common.Hash) (*big.Int, error) {
	f.permCalls++
	return f.word, f.err
}

func TestCachedChainIDResolvesOnce(t *testing.T) {
	fake := &fakeProvider{chainID: 1}
	c := NewCached(fake, time.Minute)

	id1, err := c.ChainID(context.Background())
	require.NoError(t, err)
	id2, err := c.ChainID(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, id1)
	assert.EqualValues(t, 1, id2)
	assert.Equal(t, 1, fake.chainIDCalls, "second call must be served from the cached value")
}

func TestCachedGetPermissionsServesWithinTTL(t *testing.T) {
	fake := &fakeProvider{word: big.NewInt(7)}
	c := NewCached(fake, time.Minute)

	contract := common.HexToAddress("0xAbC1230000000000000000000000000000000000")
	signatory := common.HexToAddress("0xdeF4560000000000000000000000000000000000")
	hash := common.HexToHash("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef")

	w1, err := c.GetPermissions(context.Background(), contract, signatory, hash)
	require.NoError(t, err)
	w2, err := c.GetPermissions(context.Background(), contract, signatory, hash)
	require.NoError(t, err)

	assert.Equal(t, w1, w2)
	assert.Equal(t, 1, fake.permCalls)
}

func TestCachedGetPermissionsRefetchesAfterTTLExpires(t *testing.T) {
	fake := &fakeProvider{word: big.NewInt(7)}
	c := NewCached(fake, time.Millisecond)

	contract := common.HexToAddress("0xAbC1230000000000000000000000000000000000")
	signatory := common.HexToAddress("0xdeF4560000000000000000000000000000000000")
	hash := common.HexToHash("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef")

	_, err := c.GetPermissions(context.Background(), contract, signatory, hash)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	fake.word = big.NewInt(9)

	w2, err := c.GetPermissions(context.Background(), contract, signatory, hash)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(9), w2)
	assert.Equal(t, 2, fake.permCalls)
}

func TestCachedInvalidateForcesRefetch(t *testing.T) {
	fake := &fakeProvider{word: big.NewInt(1)}
	c := NewCached(fake, time.Hour)

	contract := common.HexToAddress("0xAbC1230000000000000000000000000000000000")
	signatory := common.HexToAddress("0xdeF4560000000000000000000000000000000000")
	hash := common.HexToHash("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef")

	_, err := c.GetPermissions(context.Background(), contract, signatory, hash)
	require.NoError(t, err)

	c.Invalidate(contract, signatory, hash)
	fake.word = big.NewInt(2)

	w, err := c.GetPermissions(context.Background(), contract, signatory, hash)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), w)
	assert.Equal(t, 2, fake.permCalls)
}
