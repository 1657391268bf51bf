package kvdb

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemDatabase is a map-backed Database for tests and ephemeral chains.
// Nothing gets persisted.
type MemDatabase struct {
	db   map[string][]byte
	lock sync.RWMutex
}

func NewMemDatabase() *MemDatabase {
	return &MemDatabase{
		db: make(map[string][]byte),
	}
}

func (self *MemDatabase) Put(key []byte, value []byte) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	self.db[string(key)] = common.CopyBytes(value)
	return nil
}

func (self *MemDatabase) Has(key []byte) (bool, error) {
	self.lock.RLock()
	defer self.lock.RUnlock()

	_, ok := self.db[string(key)]
	return ok, nil
}

func (self *MemDatabase) Get(key []byte) ([]byte, error) {
	self.lock.RLock()
	defer self.lock.RUnlock()

	if entry, ok := self.db[string(key)]; ok {
		return common.CopyBytes(entry), nil
	}
	return nil, ErrNotFound
}

func (self *MemDatabase) Delete(key []byte) error {
	self.lock.Lock()
	defer self.lock.Unlock()

	delete(self.db, string(key))
	return nil
}

func (self *MemDatabase) Len() int {
	self.lock.RLock()
	defer self.lock.RUnlock()
	return len(self.db)
}

func (self *MemDatabase) Close() error { return nil }

func (self *MemDatabase) NewBatch() Batch {
	return &memBatch{db: self}
}

type kv struct {
	k, v []byte
	del  bool
}

type memBatch struct {
	db     *MemDatabase
	writes []kv
	size   int
}

func (self *memBatch) Put(key, value []byte) error {
	self.writes = append(self.writes, kv{common.CopyBytes(key), common.CopyBytes(value), false})
	self.size += len(value)
	return nil
}

func (self *memBatch) Delete(key []byte) error {
	self.writes = append(self.writes, kv{common.CopyBytes(key), nil, true})
	self.size += 1
	return nil
}

// Write applies all recorded operations under one exclusive lock, so readers
// observe either none or all of them.
func (self *memBatch) Write() error {
	self.db.lock.Lock()
	defer self.db.lock.Unlock()

	for _, kv := range self.writes {
		if kv.del {
			delete(self.db.db, string(kv.k))
			continue
		}
		self.db.db[string(kv.k)] = kv.v
	}
	return nil
}

func (self *memBatch) ValueSize() int {
	return self.size
}

func (self *memBatch) Reset() {
	self.writes = self.writes[:0]
	self.size = 0
}
