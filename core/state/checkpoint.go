package state

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/furaguy/bit2coin/kvdb"
)

// Checkpoint pins the chain metadata at a given height so external tooling
// can audit or fast-sync from a known-good point.
type Checkpoint struct {
	Height    uint64
	Hash      common.Hash
	Timestamp uint64
	Meta      ChainMetadata
	Verified  bool
}

// CheckpointManager stores checkpoints in the same kv store as the ledger.
// An index record tracks all checkpoint heights in ascending order, and
// cp:latest points at the newest one.
type CheckpointManager struct {
	db kvdb.Database
}

func NewCheckpointManager(db kvdb.Database) *CheckpointManager {
	return &CheckpointManager{db: db}
}

func (self *CheckpointManager) Create(cp Checkpoint) error {
	batch := self.db.NewBatch()
	if err := self.stage(batch, cp); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return storageErr(err)
	}
	return nil
}

// stage adds the checkpoint writes to an existing batch, so a checkpoint can
// be committed atomically with the block that triggers it.
func (self *CheckpointManager) stage(batch kvdb.Batch, cp Checkpoint) error {
	heights, err := self.Heights()
	if err != nil {
		return err
	}
	if len(heights) == 0 || heights[len(heights)-1] < cp.Height {
		heights = append(heights, cp.Height)
	}
	batch.Put(checkpointKey(cp.Height), mustEncode(&cp))
	batch.Put(checkpoint_index_key, mustEncode(heights))
	batch.Put(checkpoint_latest_key, encodeNum(cp.Height))
	return nil
}

// Get returns nil without error for heights with no checkpoint.
func (self *CheckpointManager) Get(height uint64) (*Checkpoint, error) {
	enc, err := self.db.Get(checkpointKey(height))
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	cp := new(Checkpoint)
	if err := rlp.DecodeBytes(enc, cp); err != nil {
		return nil, storageErr(err)
	}
	return cp, nil
}

func (self *CheckpointManager) Latest() (*Checkpoint, error) {
	enc, err := self.db.Get(checkpoint_latest_key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return self.Get(decodeNum(enc))
}

// Heights lists all checkpoint heights in ascending order.
func (self *CheckpointManager) Heights() ([]uint64, error) {
	enc, err := self.db.Get(checkpoint_index_key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	var heights []uint64
	if err := rlp.DecodeBytes(enc, &heights); err != nil {
		return nil, storageErr(err)
	}
	return heights, nil
}

// Verify re-reads the stored record and marks it verified.
func (self *CheckpointManager) Verify(height uint64) (bool, error) {
	cp, err := self.Get(height)
	if err != nil || cp == nil {
		return false, err
	}
	cp.Verified = true
	if err := self.db.Put(checkpointKey(height), mustEncode(cp)); err != nil {
		return false, storageErr(err)
	}
	return true, nil
}

// Prune drops all but the newest keep checkpoints.
func (self *CheckpointManager) Prune(keep int) error {
	heights, err := self.Heights()
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	if len(heights) <= keep {
		return nil
	}
	cut := len(heights) - keep
	batch := self.db.NewBatch()
	for _, height := range heights[:cut] {
		batch.Delete(checkpointKey(height))
	}
	batch.Put(checkpoint_index_key, mustEncode(heights[cut:]))
	if err := batch.Write(); err != nil {
		return storageErr(err)
	}
	return nil
}
