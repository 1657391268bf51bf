package keccak256

import (
	"hash"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

type hash_state interface {
	hash.Hash
	Read([]byte) (int, error)
}

var hashers = sync.Pool{New: func() interface{} {
	return sha3.NewLegacyKeccak256().(hash_state)
}}

// Hash computes the keccak256 digest of the concatenation of bs.
func Hash(bs ...[]byte) (ret common.Hash) {
	hasher := hashers.Get().(hash_state)
	for _, b := range bs {
		hasher.Write(b)
	}
	hasher.Read(ret[:])
	hasher.Reset()
	hashers.Put(hasher)
	return
}
