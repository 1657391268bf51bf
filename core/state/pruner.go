package state

import (
	"errors"

	"github.com/furaguy/bit2coin/kvdb"
)

// Pruner removes old block bodies and their transaction records, keeping the
// most recent PruneKeepBlocks blocks plus every checkpointed height. Balances,
// metadata and history sequences are untouched: pruning drops bodies, not
// ledger state, so GetTransactionHistory simply skips pruned entries.
type Pruner struct {
	state *BlockchainState
}

func NewPruner(state *BlockchainState) *Pruner {
	return &Pruner{state: state}
}

// Prune scans from the last prune floor up to the retention boundary and
// deletes one block per batch. Returns the number of blocks pruned.
func (self *Pruner) Prune() (pruned int, err error) {
	st := self.state
	keep := st.cfg.PruneKeepBlocks
	if st.meta.Height <= keep {
		return 0, nil
	}
	boundary := st.meta.Height - keep

	floor, err := self.loadFloor()
	if err != nil {
		return 0, err
	}
	checkpointed := make(map[uint64]bool)
	heights, err := st.checkpoints.Heights()
	if err != nil {
		return 0, err
	}
	for _, height := range heights {
		checkpointed[height] = true
	}

	for height := floor; height < boundary; height++ {
		if checkpointed[height] {
			continue
		}
		b, err := st.GetBlockByHeight(height)
		if err != nil {
			return pruned, err
		}
		if b == nil {
			continue
		}
		batch := st.db.NewBatch()
		batch.Delete(blockHashKey(b.Hash))
		batch.Delete(blockNumKey(height))
		for _, tx := range b.Transactions {
			batch.Delete(txKey(tx.ID))
		}
		batch.Put(prune_floor_key, encodeNum(height+1))
		if err := batch.Write(); err != nil {
			return pruned, storageErr(err)
		}
		st.block_cache.Remove(b.Hash)
		pruned++
	}
	// Everything below the boundary is now settled, deleted or kept for a
	// checkpoint, so the floor moves past skipped heights too. A checkpoint
	// pruned later keeps its body; CheckpointManager.Prune owns that
	// trade-off.
	if boundary > floor {
		if err := st.db.Put(prune_floor_key, encodeNum(boundary)); err != nil {
			return pruned, storageErr(err)
		}
	}
	return pruned, nil
}

func (self *Pruner) loadFloor() (uint64, error) {
	enc, err := self.state.db.Get(prune_floor_key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return decodeNum(enc), nil
}
