package tokenset

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAddIsIdempotentByAddress(t *testing.T) {
	s := New()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	s.Add(Token{Address: addr, Name: "stETH"})
	s.Add(Token{Address: addr, Name: "stETH-renamed"})

	assert.Equal(t, 1, s.Count())
	snap := s.Snapshot()
	assert.Equal(t, "stETH-renamed", snap[0].Name)
}

func TestRemoveByAddress(t *testing.T) {
	s := New()
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	s.Add(Token{Address: addr})
	s.Remove(addr)
	assert.False(t, s.Has(addr))
	assert.Equal(t, 0, s.Count())
}

func TestReplaceSwapsAtomically(t *testing.T) {
	s := New()
	s.Add(Token{Address: common.HexToAddress("0x01")})
	s.Replace([]Token{{Address: common.HexToAddress("0x02")}, {Address: common.HexToAddress("0x03")}})
	assert.Equal(t, 2, s.Count())
}

func TestVerifiedPairsFiltersUnverified(t *testing.T) {
	s := New()
	s.Add(Token{Address: common.HexToAddress("0x01"), Verified: true})
	s.Add(Token{Address: common.HexToAddress("0x02"), Verified: false})
	assert.Len(t, s.VerifiedPairs(), 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	addr := common.HexToAddress("0x04")
	s.Add(Token{Address: addr, Name: "a"})
	snap := s.Snapshot()
	snap[0].Name = "mutated"
	assert.Equal(t, "a", s.Snapshot()[0].Name)
}
