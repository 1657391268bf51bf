package core

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/furaguy/bit2coin/core/state"
	"github.com/furaguy/bit2coin/core/types"
	"github.com/furaguy/bit2coin/params"
)

type BalanceMap = map[common.Address]*big.Int

// Genesis describes block zero: one mint transaction per allocated address,
// sent from the system mint address. ToBlock is deterministic, so every node
// configured with the same allocation derives the same genesis hash.
type Genesis struct {
	Alloc     BalanceMap
	Proposer  common.Address
	Timestamp uint64
}

func (self *Genesis) ToBlock() *types.Block {
	addresses := make([]common.Address, 0, len(self.Alloc))
	for addr := range self.Alloc {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].Hex() < addresses[j].Hex()
	})
	txs := make([]*types.Transaction, 0, len(addresses))
	for _, addr := range addresses {
		tx, err := types.NewTransaction(params.MintAddress, addr, self.Alloc[addr], self.Timestamp)
		if err != nil {
			panic(err)
		}
		txs = append(txs, tx)
	}
	return types.NewBlock(0, types.ZeroHash, self.Proposer, self.Timestamp, txs)
}

// Commit applies the genesis block to an empty state and returns it.
func (self *Genesis) Commit(st *state.BlockchainState) (*types.Block, error) {
	b := self.ToBlock()
	if err := st.ApplyBlock(b); err != nil {
		return nil, err
	}
	return b, nil
}
