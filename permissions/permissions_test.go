package permissions

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeNilWordIsAllZero(t *testing.T) {
	p := Decode(nil)
	assert.False(t, p.CanRead())
	assert.False(t, p.CanWrite())
	assert.False(t, p.BubbleTerminated())
	assert.False(t, p.IsDirectory())
}

func TestDecodeUint64LowBits(t *testing.T) {
	p := DecodeUint64(0b1011) // read, write, execute
	assert.True(t, p.CanRead())
	assert.True(t, p.CanWrite())
	assert.False(t, p.CanAppend())
	assert.True(t, p.CanExecute())
}

func TestDecodeHighFlagBits(t *testing.T) {
	word := new(big.Int).SetBit(new(big.Int), 255, 1) // directory flag
	word = word.SetBit(word, 254, 1)                  // terminated flag
	p := Decode(word)
	assert.True(t, p.IsDirectory())
	assert.True(t, p.BubbleTerminated())
	assert.False(t, p.CanRead())
}

func TestWordRoundTrips(t *testing.T) {
	word := big.NewInt(42)
	p := Decode(word)
	assert.Equal(t, word, p.Word())
}
