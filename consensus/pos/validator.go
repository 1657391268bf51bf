package pos

import (
	"encoding/binary"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"github.com/furaguy/bit2coin/util/keccak256"
)

// Validator is a stake-weighted member of the proposer set. Instances handed
// out by the registry are copies; the registry keeps exclusive ownership of
// the stored state.
type Validator struct {
	Address common.Address
	Stake   *big.Int
}

func (self *Validator) copy() Validator {
	return Validator{self.Address, new(big.Int).Set(self.Stake)}
}

// Source yields the draw point for roulette-wheel selection, uniformly
// distributed in [0, total). Selection is only as good as its source: a
// process-local PseudoSource makes independent nodes disagree on the
// proposer, so multi-node deployments must share a BeaconSource.
type Source interface {
	Draw(total *big.Int) *big.Int
}

// PseudoSource draws from a process-local PRNG. Test and single-node use only.
type PseudoSource struct {
	rnd *rand.Rand
}

func NewPseudoSource(seed int64) *PseudoSource {
	return &PseudoSource{rnd: rand.New(rand.NewSource(seed))}
}

func (self *PseudoSource) Draw(total *big.Int) *big.Int {
	return new(big.Int).Rand(self.rnd, total)
}

// BeaconSource derives the draw point from the chain head, so every node
// holding the same head selects the same proposer.
type BeaconSource struct {
	PrevHash common.Hash
	Height   uint64
}

func (self BeaconSource) Draw(total *big.Int) *big.Int {
	var height_bytes [8]byte
	binary.BigEndian.PutUint64(height_bytes[:], self.Height)
	seed := keccak256.Hash(self.PrevHash.Bytes(), height_bytes[:])
	return new(big.Int).Mod(new(big.Int).SetBytes(seed.Bytes()), total)
}
