package kvdb

import (
	"github.com/syndtr/goleveldb/leveldb"
	leveldb_errors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LDBDatabase is the durable Database backend. All writes are synced, so an
// acknowledged Put or Batch.Write survives a crash; leveldb's write batch
// gives the multi-key atomicity contract.
type LDBDatabase struct {
	file      string
	db        *leveldb.DB
	writeOpts *opt.WriteOptions
}

func NewLDBDatabase(file string, cache int, handles int) (*LDBDatabase, error) {
	if cache < 16 {
		cache = 16
	}
	if handles < 16 {
		handles = 16
	}
	db, err := leveldb.OpenFile(file, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*leveldb_errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LDBDatabase{
		file:      file,
		db:        db,
		writeOpts: &opt.WriteOptions{Sync: true},
	}, nil
}

func (self *LDBDatabase) Path() string {
	return self.file
}

func (self *LDBDatabase) Put(key []byte, value []byte) error {
	return self.db.Put(key, value, self.writeOpts)
}

func (self *LDBDatabase) Get(key []byte) ([]byte, error) {
	ret, err := self.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return ret, err
}

func (self *LDBDatabase) Has(key []byte) (bool, error) {
	return self.db.Has(key, nil)
}

func (self *LDBDatabase) Delete(key []byte) error {
	return self.db.Delete(key, self.writeOpts)
}

func (self *LDBDatabase) Close() error {
	return self.db.Close()
}

func (self *LDBDatabase) NewBatch() Batch {
	return &ldbBatch{db: self, batch: new(leveldb.Batch)}
}

type ldbBatch struct {
	db    *LDBDatabase
	batch *leveldb.Batch
	size  int
}

func (self *ldbBatch) Put(key, value []byte) error {
	self.batch.Put(key, value)
	self.size += len(value)
	return nil
}

func (self *ldbBatch) Delete(key []byte) error {
	self.batch.Delete(key)
	self.size += 1
	return nil
}

func (self *ldbBatch) Write() error {
	return self.db.db.Write(self.batch, self.db.writeOpts)
}

func (self *ldbBatch) ValueSize() int {
	return self.size
}

func (self *ldbBatch) Reset() {
	self.batch.Reset()
	self.size = 0
}
