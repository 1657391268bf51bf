package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key layout of the ledger inside the kv store. Nothing outside this file
// builds raw keys.
var (
	balance_prefix        = []byte("bal:")
	block_hash_prefix     = []byte("blk:h:")
	block_num_prefix      = []byte("blk:n:")
	tx_prefix             = []byte("tx:")
	hist_sender_prefix    = []byte("hist:s:")
	hist_recipient_prefix = []byte("hist:r:")
	chain_meta_key        = []byte("chain:meta")
	checkpoint_prefix     = []byte("cp:n:")
	checkpoint_index_key  = []byte("cp:index")
	checkpoint_latest_key = []byte("cp:latest")
	prune_floor_key       = []byte("prune:floor")
)

func withPrefix(prefix, suffix []byte) []byte {
	ret := make([]byte, 0, len(prefix)+len(suffix))
	return append(append(ret, prefix...), suffix...)
}

func encodeNum(num uint64) []byte {
	var ret [8]byte
	binary.BigEndian.PutUint64(ret[:], num)
	return ret[:]
}

func decodeNum(enc []byte) uint64 {
	return binary.BigEndian.Uint64(enc)
}

func balanceKey(addr common.Address) []byte {
	return withPrefix(balance_prefix, addr.Bytes())
}

func blockHashKey(hash common.Hash) []byte {
	return withPrefix(block_hash_prefix, hash.Bytes())
}

func blockNumKey(num uint64) []byte {
	return withPrefix(block_num_prefix, encodeNum(num))
}

func txKey(id common.Hash) []byte {
	return withPrefix(tx_prefix, id.Bytes())
}

func histSenderKey(addr common.Address) []byte {
	return withPrefix(hist_sender_prefix, addr.Bytes())
}

func histRecipientKey(addr common.Address) []byte {
	return withPrefix(hist_recipient_prefix, addr.Bytes())
}

func checkpointKey(num uint64) []byte {
	return withPrefix(checkpoint_prefix, encodeNum(num))
}
