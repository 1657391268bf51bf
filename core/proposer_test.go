package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/furaguy/bit2coin/consensus/pos"
)

func testRegistry(t *testing.T) *pos.Registry {
	registry := pos.NewRegistry(big.NewInt(1), nil)
	for b := byte(1); b <= 3; b++ {
		assert.True(t, registry.Register(pos.Validator{
			Address: addr(b),
			Stake:   big.NewInt(int64(b) * 100),
		}))
	}
	return registry
}

func TestNextProposerDeterministic(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	canonical, _ := forkedChains(t)
	applyAll(t, st, canonical)
	registry := testRegistry(t)

	first, ok := NextProposer(st, registry)
	assert.True(ok)
	for i := 0; i < 10; i++ {
		again, ok := NextProposer(st, registry)
		assert.True(ok)
		assert.Equal(first.Address, again.Address)
	}
}

func TestNextProposerFollowsHead(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	canonical, _ := forkedChains(t)
	registry := testRegistry(t)

	// the beacon changes with the head, so the draw point moves too
	beacons := make(map[string]bool)
	for _, b := range canonical {
		assert.NoError(st.ApplyBlock(b))
		beacon := ProposerBeacon(st)
		assert.Equal(b.Hash, beacon.PrevHash)
		assert.Equal(b.Height+1, beacon.Height)
		beacons[beacon.PrevHash.Hex()] = true

		_, ok := NextProposer(st, registry)
		assert.True(ok)
	}
	assert.Len(beacons, len(canonical))
}

func TestNextProposerEmptyRegistry(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	registry := pos.NewRegistry(big.NewInt(1), nil)

	_, ok := NextProposer(st, registry)
	assert.False(ok)
}
