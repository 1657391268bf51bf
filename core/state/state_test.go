package state

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/furaguy/bit2coin/core/types"
	"github.com/furaguy/bit2coin/kvdb"
	"github.com/furaguy/bit2coin/params"
)

func addr(b byte) common.Address {
	return common.Address{b}
}

func mustTx(t *testing.T, sender, recipient common.Address, amount int64, ts uint64) *types.Transaction {
	tx, err := types.NewTransaction(sender, recipient, big.NewInt(amount), ts)
	assert.NoError(t, err)
	return tx
}

func testState(t *testing.T) *BlockchainState {
	st, err := New(kvdb.NewMemDatabase(), nil)
	assert.NoError(t, err)
	return st
}

func balanceOf(t *testing.T, st *BlockchainState, a common.Address) int64 {
	balance, err := st.GetBalance(a)
	assert.NoError(t, err)
	return balance.Int64()
}

func TestGenesisApply(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	sender, recipient := addr(1), addr(2)

	b1 := types.NewBlock(0, types.ZeroHash, addr(9), 0,
		[]*types.Transaction{mustTx(t, sender, recipient, 100, 1)})
	assert.NoError(st.ApplyBlock(b1))

	// transfers only move value: the unfunded genesis sender goes negative
	assert.Equal(int64(-100), balanceOf(t, st, sender))
	assert.Equal(int64(100), balanceOf(t, st, recipient))

	head, ok := st.GetChainHead()
	assert.True(ok)
	assert.Equal(b1.Hash, head)
	meta := st.GetChainMetadata()
	assert.Equal(uint64(1), meta.Height)
	assert.Equal(uint64(1), meta.TotalTransactions)
}

func TestGenesisRoundTrip(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	sender, recipient := addr(1), addr(2)

	b1 := types.NewBlock(0, types.ZeroHash, addr(9), 0,
		[]*types.Transaction{mustTx(t, sender, recipient, 100, 1)})
	assert.NoError(st.ApplyBlock(b1))
	assert.NoError(st.RevertBlock(b1))

	assert.Equal(int64(0), balanceOf(t, st, sender))
	assert.Equal(int64(0), balanceOf(t, st, recipient))
	_, ok := st.GetChainHead()
	assert.False(ok)
	meta := st.GetChainMetadata()
	assert.Equal(uint64(0), meta.Height)
	assert.Equal(uint64(0), meta.TotalTransactions)
	assert.Equal(types.ZeroHash, meta.HeadHash)

	history, err := st.GetTransactionHistory(sender)
	assert.NoError(err)
	assert.Empty(history.AsSender)
	assert.Empty(history.AsRecipient)

	b, err := st.GetBlockByHash(b1.Hash)
	assert.NoError(err)
	assert.Nil(b)
	tx, _, err := st.GetTransaction(b1.Transactions[0].ID)
	assert.NoError(err)
	assert.Nil(tx)
}

// buildChain funds addr(1) at genesis and moves value around for two more
// blocks.
func buildChain(t *testing.T) []*types.Block {
	b0 := types.NewBlock(0, types.ZeroHash, addr(9), 0,
		[]*types.Transaction{mustTx(t, params.MintAddress, addr(1), 1000, 0)})
	b1 := types.NewBlock(1, b0.Hash, addr(9), 10, []*types.Transaction{
		mustTx(t, addr(1), addr(2), 300, 11),
		mustTx(t, addr(2), addr(3), 100, 12),
	})
	b2 := types.NewBlock(2, b1.Hash, addr(9), 20, []*types.Transaction{
		mustTx(t, addr(3), addr(1), 50, 21),
	})
	return []*types.Block{b0, b1, b2}
}

func TestMultiBlockRoundTrip(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)

	for _, b := range chain {
		assert.NoError(st.ApplyBlock(b))
	}
	assert.Equal(int64(750), balanceOf(t, st, addr(1)))
	assert.Equal(int64(200), balanceOf(t, st, addr(2)))
	assert.Equal(int64(50), balanceOf(t, st, addr(3)))

	history, err := st.GetTransactionHistory(addr(1))
	assert.NoError(err)
	assert.Len(history.AsSender, 1)
	assert.Len(history.AsRecipient, 2)

	for i := len(chain) - 1; i >= 0; i-- {
		assert.NoError(st.RevertBlock(chain[i]))
	}
	for b := byte(1); b <= 3; b++ {
		assert.Equal(int64(0), balanceOf(t, st, addr(b)))
		history, err := st.GetTransactionHistory(addr(b))
		assert.NoError(err)
		assert.Empty(history.AsSender)
		assert.Empty(history.AsRecipient)
	}
	meta := st.GetChainMetadata()
	assert.Equal(uint64(0), meta.Height)
	assert.Equal(uint64(0), meta.TotalTransactions)
}

func TestApplyInvalidLink(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)

	// non-genesis block on an empty chain
	assert.Equal(ErrInvalidLink, st.ApplyBlock(chain[1]))

	assert.NoError(st.ApplyBlock(chain[0]))
	// skipping a height breaks linkage too
	assert.Equal(ErrInvalidLink, st.ApplyBlock(chain[2]))
	assert.Equal(uint64(1), st.GetChainMetadata().Height)
}

func TestApplyDuplicateBlock(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)
	assert.NoError(st.ApplyBlock(chain[0]))

	// a block whose hash is already recorded is refused even if it links
	dup := types.NewBlock(1, chain[0].Hash, addr(9), 10, nil)
	assert.NoError(st.db.Put(blockHashKey(dup.Hash), mustEncode(dup)))
	assert.Equal(ErrDuplicateBlock, st.ApplyBlock(dup))
}

func TestApplyInsufficientFunds(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)
	assert.NoError(st.ApplyBlock(chain[0]))

	overdraft := types.NewBlock(1, chain[0].Hash, addr(9), 10,
		[]*types.Transaction{mustTx(t, addr(1), addr(2), 1001, 11)})
	assert.Equal(ErrInsufficientFunds, st.ApplyBlock(overdraft))

	// rejection leaves no trace
	assert.Equal(int64(1000), balanceOf(t, st, addr(1)))
	assert.Equal(int64(0), balanceOf(t, st, addr(2)))
	assert.Equal(uint64(1), st.GetChainMetadata().Height)
}

func TestApplyAllowNegativeBalances(t *testing.T) {
	assert := assert.New(t)
	cfg := params.DefaultChainConfig()
	cfg.AllowNegativeBalances = true
	st, err := New(kvdb.NewMemDatabase(), cfg)
	assert.NoError(err)
	chain := buildChain(t)
	assert.NoError(st.ApplyBlock(chain[0]))

	overdraft := types.NewBlock(1, chain[0].Hash, addr(9), 10,
		[]*types.Transaction{mustTx(t, addr(2), addr(3), 10, 11)})
	assert.NoError(st.ApplyBlock(overdraft))
	assert.Equal(int64(-10), balanceOf(t, st, addr(2)))
}

func TestRevertNotHead(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)
	for _, b := range chain {
		assert.NoError(st.ApplyBlock(b))
	}

	assert.Equal(ErrNotHead, st.RevertBlock(chain[1]))
	// state untouched
	assert.Equal(uint64(3), st.GetChainMetadata().Height)
	assert.Equal(int64(750), balanceOf(t, st, addr(1)))
}

func TestRevertHistoryMismatch(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)
	for _, b := range chain[:2] {
		assert.NoError(st.ApplyBlock(b))
	}

	// corrupt the sender history tail of addr(1)
	bogus := historyRecord{common.Hash{0xde, 0xad}}
	assert.NoError(st.db.Put(histSenderKey(addr(1)), mustEncode(bogus)))
	assert.Equal(ErrHistoryMismatch, st.RevertBlock(chain[1]))
}

func TestGetBlockByHeight(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)
	for _, b := range chain {
		assert.NoError(st.ApplyBlock(b))
	}

	b, err := st.GetBlockByHeight(1)
	assert.NoError(err)
	assert.Equal(chain[1].Hash, b.Hash)

	missing, err := st.GetBlockByHeight(42)
	assert.NoError(err)
	assert.Nil(missing)
}

func TestGetTransaction(t *testing.T) {
	assert := assert.New(t)
	st := testState(t)
	chain := buildChain(t)
	for _, b := range chain {
		assert.NoError(st.ApplyBlock(b))
	}

	want := chain[1].Transactions[0]
	tx, height, err := st.GetTransaction(want.ID)
	assert.NoError(err)
	assert.Equal(uint64(1), height)
	assert.Equal(want.ID, tx.ID)
	assert.Equal(want.Amount, tx.Amount)
}

type failingBatch struct {
	kvdb.Batch
}

func (self failingBatch) Write() error {
	return errors.New("simulated disk failure")
}

type failingDB struct {
	*kvdb.MemDatabase
}

func (self failingDB) NewBatch() kvdb.Batch {
	return failingBatch{self.MemDatabase.NewBatch()}
}

func TestApplyStorageFailureLeavesNoTrace(t *testing.T) {
	assert := assert.New(t)
	st, err := New(failingDB{kvdb.NewMemDatabase()}, nil)
	assert.NoError(err)
	chain := buildChain(t)

	err = st.ApplyBlock(chain[0])
	assert.True(errors.Is(err, ErrStorage))

	_, ok := st.GetChainHead()
	assert.False(ok)
	assert.Equal(int64(0), balanceOf(t, st, addr(1)))
	b, err := st.GetBlockByHash(chain[0].Hash)
	assert.NoError(err)
	assert.Nil(b)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	assert := assert.New(t)
	file := filepath.Join(t.TempDir(), "chaindata")
	chain := buildChain(t)

	db, err := kvdb.NewLDBDatabase(file, 16, 16)
	assert.NoError(err)
	st, err := New(db, nil)
	assert.NoError(err)
	for _, b := range chain {
		assert.NoError(st.ApplyBlock(b))
	}
	assert.NoError(st.Close())

	db, err = kvdb.NewLDBDatabase(file, 16, 16)
	assert.NoError(err)
	st, err = New(db, nil)
	assert.NoError(err)
	defer st.Close()

	meta := st.GetChainMetadata()
	assert.Equal(uint64(3), meta.Height)
	assert.Equal(uint64(4), meta.TotalTransactions)
	assert.Equal(chain[2].Hash, meta.HeadHash)
	assert.Equal(int64(750), balanceOf(t, st, addr(1)))
	history, err := st.GetTransactionHistory(addr(2))
	assert.NoError(err)
	assert.Len(history.AsSender, 1)
	assert.Len(history.AsRecipient, 1)
}
