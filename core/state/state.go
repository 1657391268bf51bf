package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/furaguy/bit2coin/core/types"
	"github.com/furaguy/bit2coin/kvdb"
	"github.com/furaguy/bit2coin/params"
)

var (
	block_apply_meter  = metrics.NewRegisteredMeter("chain/blocks/applied", nil)
	block_revert_meter = metrics.NewRegisteredMeter("chain/blocks/reverted", nil)
	tx_apply_meter     = metrics.NewRegisteredMeter("chain/txs/applied", nil)
)

const block_cache_size = 256

// BlockchainState is the ledger state machine: one implicit state "head at
// height H with hash Z", mutated only through ApplyBlock (H -> H+1) and
// RevertBlock (H -> H-1), both demanding exact linkage to the current head.
// History is strictly linear; fork resolution is the driver's job (see
// core.Reorganizer). Every mutation is a single atomic batch, which is the
// whole consistency story: balances, indices, histories and metadata are
// never durable in a mixed generation.
//
// No internal locking. Concurrent callers must serialize mutations
// externally; readers are safe between, not during, mutations.
type BlockchainState struct {
	db          kvdb.Database
	cfg         *params.ChainConfig
	meta        ChainMetadata
	checkpoints *CheckpointManager
	block_cache *lru.Cache
}

func New(db kvdb.Database, cfg *params.ChainConfig) (*BlockchainState, error) {
	if cfg == nil {
		cfg = params.DefaultChainConfig()
	}
	self := &BlockchainState{
		db:          db,
		cfg:         cfg,
		checkpoints: NewCheckpointManager(db),
	}
	self.block_cache, _ = lru.New(block_cache_size)
	enc, err := db.Get(chain_meta_key)
	if err == nil {
		if err := rlp.DecodeBytes(enc, &self.meta); err != nil {
			return nil, storageErr(err)
		}
	} else if !errors.Is(err, kvdb.ErrNotFound) {
		return nil, storageErr(err)
	}
	return self, nil
}

func (self *BlockchainState) Checkpoints() *CheckpointManager {
	return self.checkpoints
}

// Close flushes and closes the underlying store.
func (self *BlockchainState) Close() error {
	return self.db.Close()
}

// GetChainHead returns the hash of the most recently applied block, or false
// on an empty chain.
func (self *BlockchainState) GetChainHead() (common.Hash, bool) {
	if self.meta.Height == 0 {
		return types.ZeroHash, false
	}
	return self.meta.HeadHash, true
}

func (self *BlockchainState) GetChainMetadata() ChainMetadata {
	return self.meta
}

// ApplyBlock advances the head by one block. The block must link to the
// current head (or be a genesis block on an empty chain) and must not have
// been applied before. All resulting writes - balances, block and transaction
// records, history tails, metadata, due checkpoints - go in one batch.
func (self *BlockchainState) ApplyBlock(b *types.Block) error {
	if head, ok := self.GetChainHead(); ok {
		if b.PreviousHash != head || b.Height != self.meta.Height {
			return ErrInvalidLink
		}
	} else if b.Height != 0 || b.PreviousHash != types.ZeroHash {
		return ErrInvalidLink
	}
	if applied, err := self.db.Has(blockHashKey(b.Hash)); err != nil {
		return storageErr(err)
	} else if applied {
		return ErrDuplicateBlock
	}

	balances := make(map[common.Address]*big.Int)
	histories := make(map[string]historyRecord)
	for _, tx := range b.Transactions {
		sender_balance, err := self.pendingBalance(balances, tx.Sender)
		if err != nil {
			return err
		}
		sender_balance.Sub(sender_balance, tx.Amount)
		if sender_balance.Sign() < 0 && !self.mayOverdraw(b, tx) {
			return ErrInsufficientFunds
		}
		recipient_balance, err := self.pendingBalance(balances, tx.Recipient)
		if err != nil {
			return err
		}
		recipient_balance.Add(recipient_balance, tx.Amount)

		for _, key := range [][]byte{histSenderKey(tx.Sender), histRecipientKey(tx.Recipient)} {
			ids, err := self.pendingHistory(histories, key)
			if err != nil {
				return err
			}
			histories[string(key)] = append(ids, tx.ID)
		}
	}

	new_meta := ChainMetadata{
		Height:            b.Height + 1,
		TotalTransactions: self.meta.TotalTransactions + b.TxCount(),
		HeadHash:          b.Hash,
	}
	batch := self.db.NewBatch()
	for addr, amount := range balances {
		batch.Put(balanceKey(addr), encodeBalance(amount))
	}
	batch.Put(blockHashKey(b.Hash), mustEncode(b))
	batch.Put(blockNumKey(b.Height), b.Hash.Bytes())
	for _, tx := range b.Transactions {
		batch.Put(txKey(tx.ID), mustEncode(&txRecord{tx, b.Height}))
	}
	for key, ids := range histories {
		batch.Put([]byte(key), mustEncode(ids))
	}
	batch.Put(chain_meta_key, mustEncode(&new_meta))
	if interval := self.cfg.CheckpointInterval; interval != 0 && new_meta.Height%interval == 0 {
		if err := self.checkpoints.stage(batch, Checkpoint{
			Height:    b.Height,
			Hash:      b.Hash,
			Timestamp: b.Timestamp,
			Meta:      new_meta,
		}); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return storageErr(err)
	}

	self.meta = new_meta
	self.block_cache.Add(b.Hash, b)
	block_apply_meter.Mark(1)
	tx_apply_meter.Mark(int64(b.TxCount()))
	return nil
}

// mayOverdraw reports whether tx is allowed to drive its sender negative:
// mint transfers fund the chain, genesis blocks bootstrap it, and the
// permissive reference mode disables the check entirely.
func (self *BlockchainState) mayOverdraw(b *types.Block, tx *types.Transaction) bool {
	return tx.Sender == params.MintAddress || b.Height == 0 || self.cfg.AllowNegativeBalances
}

// RevertBlock undoes the current head. LIFO only: reverting anything but the
// head fails with ErrNotHead. The history tail of every touched address must
// match the reverted transaction id, which catches double reverts before
// they corrupt balances.
func (self *BlockchainState) RevertBlock(b *types.Block) error {
	head, ok := self.GetChainHead()
	if !ok || b.Hash != head {
		return ErrNotHead
	}

	balances := make(map[common.Address]*big.Int)
	histories := make(map[string]historyRecord)
	for i := len(b.Transactions) - 1; i >= 0; i-- {
		tx := b.Transactions[i]
		sender_balance, err := self.pendingBalance(balances, tx.Sender)
		if err != nil {
			return err
		}
		sender_balance.Add(sender_balance, tx.Amount)
		recipient_balance, err := self.pendingBalance(balances, tx.Recipient)
		if err != nil {
			return err
		}
		recipient_balance.Sub(recipient_balance, tx.Amount)

		for _, key := range [][]byte{histSenderKey(tx.Sender), histRecipientKey(tx.Recipient)} {
			ids, err := self.pendingHistory(histories, key)
			if err != nil {
				return err
			}
			if len(ids) == 0 || ids[len(ids)-1] != tx.ID {
				return ErrHistoryMismatch
			}
			histories[string(key)] = ids[:len(ids)-1]
		}
	}

	new_meta := ChainMetadata{
		Height:            b.Height,
		TotalTransactions: self.meta.TotalTransactions - b.TxCount(),
		HeadHash:          b.PreviousHash,
	}
	batch := self.db.NewBatch()
	for addr, amount := range balances {
		batch.Put(balanceKey(addr), encodeBalance(amount))
	}
	for key, ids := range histories {
		if len(ids) == 0 {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), mustEncode(ids))
	}
	batch.Delete(blockHashKey(b.Hash))
	batch.Delete(blockNumKey(b.Height))
	for _, tx := range b.Transactions {
		batch.Delete(txKey(tx.ID))
	}
	batch.Put(chain_meta_key, mustEncode(&new_meta))
	if err := batch.Write(); err != nil {
		return storageErr(err)
	}

	self.meta = new_meta
	self.block_cache.Remove(b.Hash)
	block_revert_meter.Mark(1)
	return nil
}

func (self *BlockchainState) pendingBalance(pending map[common.Address]*big.Int, addr common.Address) (*big.Int, error) {
	if amount, ok := pending[addr]; ok {
		return amount, nil
	}
	amount, err := self.GetBalance(addr)
	if err != nil {
		return nil, err
	}
	pending[addr] = amount
	return amount, nil
}

func (self *BlockchainState) pendingHistory(pending map[string]historyRecord, key []byte) (historyRecord, error) {
	if ids, ok := pending[string(key)]; ok {
		return ids, nil
	}
	ids, err := self.loadHistory(key)
	if err != nil {
		return nil, err
	}
	pending[string(key)] = ids
	return ids, nil
}

func (self *BlockchainState) loadHistory(key []byte) (historyRecord, error) {
	enc, err := self.db.Get(key)
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	var ids historyRecord
	if err := rlp.DecodeBytes(enc, &ids); err != nil {
		return nil, storageErr(err)
	}
	return ids, nil
}

// GetBalance returns the balance of addr; addresses never seen are zero.
func (self *BlockchainState) GetBalance(addr common.Address) (*big.Int, error) {
	enc, err := self.db.Get(balanceKey(addr))
	if errors.Is(err, kvdb.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	amount, err := decodeBalance(enc)
	if err != nil {
		return nil, storageErr(err)
	}
	return amount, nil
}

// GetBlockByHash returns nil without error when the block is unknown.
func (self *BlockchainState) GetBlockByHash(hash common.Hash) (*types.Block, error) {
	if cached, ok := self.block_cache.Get(hash); ok {
		return cached.(*types.Block), nil
	}
	enc, err := self.db.Get(blockHashKey(hash))
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	b := new(types.Block)
	if err := rlp.DecodeBytes(enc, b); err != nil {
		return nil, storageErr(err)
	}
	self.block_cache.Add(hash, b)
	return b, nil
}

func (self *BlockchainState) GetBlockByHeight(height uint64) (*types.Block, error) {
	enc, err := self.db.Get(blockNumKey(height))
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return self.GetBlockByHash(common.BytesToHash(enc))
}

// GetTransaction returns the transaction and the height of its containing
// block, or nil when unknown.
func (self *BlockchainState) GetTransaction(id common.Hash) (*types.Transaction, uint64, error) {
	enc, err := self.db.Get(txKey(id))
	if errors.Is(err, kvdb.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, storageErr(err)
	}
	var rec txRecord
	if err := rlp.DecodeBytes(enc, &rec); err != nil {
		return nil, 0, storageErr(err)
	}
	return rec.Tx, rec.BlockHeight, nil
}

// History is the per-address transaction record handed to API layers: the
// transactions where the address was the sender and where it was the
// recipient, each in application order.
type History struct {
	AsSender    []*types.Transaction
	AsRecipient []*types.Transaction
}

// GetTransactionHistory resolves both history sequences of addr. Ids whose
// transaction records have been pruned are skipped.
func (self *BlockchainState) GetTransactionHistory(addr common.Address) (*History, error) {
	ret := new(History)
	for _, side := range []struct {
		key []byte
		out *[]*types.Transaction
	}{
		{histSenderKey(addr), &ret.AsSender},
		{histRecipientKey(addr), &ret.AsRecipient},
	} {
		ids, err := self.loadHistory(side.key)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			tx, _, err := self.GetTransaction(id)
			if err != nil {
				return nil, err
			}
			if tx != nil {
				*side.out = append(*side.out, tx)
			}
		}
	}
	return ret, nil
}
