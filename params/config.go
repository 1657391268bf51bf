package params

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MintAddress is the system sender of genesis funding transactions. Transfers
// from it create value and are exempt from the balance check.
var MintAddress = common.Address{}

type ChainConfig struct {
	// Minimum stake accepted by the validator registry at registration.
	MinStake *big.Int `json:"minStake"`
	// Blocks below head-PruneKeepBlocks become candidates for pruning.
	PruneKeepBlocks uint64 `json:"pruneKeepBlocks"`
	// A checkpoint is recorded every CheckpointInterval applied blocks.
	CheckpointInterval uint64 `json:"checkpointInterval"`
	// Reorganizations deeper than this are refused.
	MaxReorgDepth uint64 `json:"maxReorgDepth"`
	// Preserves the permissive reference behavior where a transfer may
	// drive the sender balance negative. Off by default: such transfers
	// are rejected before any mutation.
	AllowNegativeBalances bool `json:"allowNegativeBalances"`
}

func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		MinStake:           big.NewInt(100),
		PruneKeepBlocks:    1000,
		CheckpointInterval: 1000,
		MaxReorgDepth:      100,
	}
}
