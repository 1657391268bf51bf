package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/furaguy/bit2coin/util"
	"github.com/furaguy/bit2coin/util/keccak256"
)

// ZeroHash is the previous-hash sentinel of the genesis block.
var ZeroHash = common.Hash{}

// Block links an ordered transaction list into the chain. Hash covers the
// header fields including the merkle root of the transaction ids, so any
// tampering with the payload is detectable via VerifyIntegrity.
type Block struct {
	Height       uint64
	PreviousHash common.Hash
	Transactions []*Transaction
	Proposer     common.Address
	Timestamp    uint64
	MerkleRoot   common.Hash
	Hash         common.Hash
}

type block_header struct {
	Height       uint64
	PreviousHash common.Hash
	MerkleRoot   common.Hash
	Proposer     common.Address
	Timestamp    uint64
}

func NewBlock(height uint64, previous_hash common.Hash, proposer common.Address, timestamp uint64, txs []*Transaction) *Block {
	self := &Block{
		Height:       height,
		PreviousHash: previous_hash,
		Transactions: txs,
		Proposer:     proposer,
		Timestamp:    timestamp,
	}
	self.MerkleRoot = self.computeMerkleRoot()
	self.Hash = self.computeHash()
	return self
}

func (self *Block) computeHash() common.Hash {
	enc, err := rlp.EncodeToBytes(&block_header{
		self.Height, self.PreviousHash, self.MerkleRoot, self.Proposer, self.Timestamp,
	})
	util.PanicIfNotNil(err)
	return keccak256.Hash(enc)
}

// computeMerkleRoot pairs up transaction ids level by level, duplicating the
// last id when a level has odd length.
func (self *Block) computeMerkleRoot() common.Hash {
	if len(self.Transactions) == 0 {
		return keccak256.Hash(nil)
	}
	level := make([]common.Hash, len(self.Transactions))
	for i, tx := range self.Transactions {
		level[i] = tx.ID
	}
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, keccak256.Hash(level[i].Bytes(), level[i+1].Bytes()))
		}
		level = next
	}
	return level[0]
}

// VerifyIntegrity recomputes the merkle root and block hash and checks every
// transaction id. It does not validate chain linkage, which is the state
// machine's job.
func (self *Block) VerifyIntegrity() bool {
	for _, tx := range self.Transactions {
		if !tx.Verify() {
			return false
		}
	}
	return self.MerkleRoot == self.computeMerkleRoot() && self.Hash == self.computeHash()
}

// TxCount is a convenience for metadata accounting.
func (self *Block) TxCount() uint64 {
	return uint64(len(self.Transactions))
}
