package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/furaguy/bit2coin/core/types"
	"github.com/furaguy/bit2coin/util"
)

// ChainMetadata is the single record summarizing the canonical tip. Height
// counts applied blocks, so an empty chain has Height 0 and the zero HeadHash.
type ChainMetadata struct {
	Height            uint64
	TotalTransactions uint64
	HeadHash          common.Hash
}

// RLP integers are unsigned; balances are signed, so the record carries the
// sign separately.
type balanceRecord struct {
	Neg bool
	Abs *big.Int
}

func encodeBalance(amount *big.Int) []byte {
	enc, err := rlp.EncodeToBytes(&balanceRecord{amount.Sign() < 0, new(big.Int).Abs(amount)})
	util.PanicIfNotNil(err)
	return enc
}

func decodeBalance(enc []byte) (*big.Int, error) {
	var rec balanceRecord
	if err := rlp.DecodeBytes(enc, &rec); err != nil {
		return nil, err
	}
	if rec.Neg {
		return rec.Abs.Neg(rec.Abs), nil
	}
	return rec.Abs, nil
}

type txRecord struct {
	Tx          *types.Transaction
	BlockHeight uint64
}

// historyRecord is the ordered list of transaction ids in which an address
// took one side, append order = application order.
type historyRecord []common.Hash

func mustEncode(value interface{}) []byte {
	enc, err := rlp.EncodeToBytes(value)
	util.PanicIfNotNil(err)
	return enc
}
