package core

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/furaguy/bit2coin/core/state"
	"github.com/furaguy/bit2coin/core/types"
	"github.com/furaguy/bit2coin/util"
)

const (
	ErrDisjointBranch = util.ErrorString("reorg: branch blocks do not link to each other")
	ErrNoForkPoint    = util.ErrorString("reorg: no common ancestor with the canonical chain")
	ErrReorgTooDeep   = util.ErrorString("reorg: depth exceeds the configured maximum")
)

type ReorgResult struct {
	OldTip    common.Hash
	NewTip    common.Hash
	ForkPoint common.Hash
	Reverted  []common.Hash
	Applied   []common.Hash
}

// Reorganizer executes a chain reorganization against the state machine:
// revert the canonical chain down to the fork point in strict reverse order,
// then apply the branch. Deciding WHETHER a branch should win is the
// consensus driver's call; the reorganizer only refuses branches it cannot
// execute. A failure mid-way is surfaced as-is: each block transition is
// atomic, so the state is left at a consistent intermediate head and the
// caller decides how to proceed.
type Reorganizer struct {
	state     *state.BlockchainState
	max_depth uint64
}

func NewReorganizer(st *state.BlockchainState, max_depth uint64) *Reorganizer {
	return &Reorganizer{state: st, max_depth: max_depth}
}

func (self *Reorganizer) Reorg(branch []*types.Block) (*ReorgResult, error) {
	if len(branch) == 0 {
		return nil, ErrNoForkPoint
	}
	for i := 1; i < len(branch); i++ {
		if branch[i].PreviousHash != branch[i-1].Hash || branch[i].Height != branch[i-1].Height+1 {
			return nil, ErrDisjointBranch
		}
	}
	by_height := make(map[uint64]*types.Block, len(branch))
	for _, b := range branch {
		by_height[b.Height] = b
	}

	old_tip, _ := self.state.GetChainHead()

	// Walk the canonical ancestry down until a branch block at the same
	// height has the same hash.
	var old_chain []*types.Block
	fork_point := types.ZeroHash
	found := false
	cursor := old_tip
	for cursor != types.ZeroHash {
		b, err := self.state.GetBlockByHash(cursor)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, ErrNoForkPoint
		}
		if candidate, ok := by_height[b.Height]; ok && candidate.Hash == b.Hash {
			fork_point, found = b.Hash, true
			break
		}
		old_chain = append(old_chain, b)
		cursor = b.PreviousHash
	}
	if !found && branch[0].Height != 0 {
		return nil, ErrNoForkPoint
	}
	if uint64(len(old_chain)) > self.max_depth {
		return nil, ErrReorgTooDeep
	}

	to_apply := branch
	if found {
		fork_height := branch[0].Height
		for _, b := range branch {
			if b.Hash == fork_point {
				fork_height = b.Height
				break
			}
		}
		to_apply = nil
		for _, b := range branch {
			if b.Height > fork_height {
				to_apply = append(to_apply, b)
			}
		}
		if len(to_apply) != 0 && to_apply[0].PreviousHash != fork_point {
			return nil, ErrNoForkPoint
		}
	}

	ret := &ReorgResult{OldTip: old_tip, ForkPoint: fork_point}
	for _, b := range old_chain {
		if err := self.state.RevertBlock(b); err != nil {
			return nil, err
		}
		ret.Reverted = append(ret.Reverted, b.Hash)
	}
	for _, b := range to_apply {
		if err := self.state.ApplyBlock(b); err != nil {
			return nil, err
		}
		ret.Applied = append(ret.Applied, b.Hash)
	}
	if head, ok := self.state.GetChainHead(); ok {
		ret.NewTip = head
	}
	return ret, nil
}
