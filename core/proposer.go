package core

import (
	"github.com/furaguy/bit2coin/consensus/pos"
	"github.com/furaguy/bit2coin/core/state"
	"github.com/furaguy/bit2coin/core/types"
)

// ProposerBeacon derives the selection beacon for the next block from the
// current chain head. Every node at the same head computes the same beacon,
// so stake-weighted selection agrees across the network without extra
// coordination.
func ProposerBeacon(st *state.BlockchainState) pos.BeaconSource {
	head, ok := st.GetChainHead()
	if !ok {
		head = types.ZeroHash
	}
	return pos.BeaconSource{PrevHash: head, Height: st.GetChainMetadata().Height}
}

// NextProposer selects the proposer of the next block. The registry is
// re-aimed at the current head beacon, so the result is a pure function of
// the validator set and the chain head.
func NextProposer(st *state.BlockchainState, registry *pos.Registry) (pos.Validator, bool) {
	registry.SetSource(ProposerBeacon(st))
	return registry.Select()
}
