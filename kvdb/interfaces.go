package kvdb

import "github.com/furaguy/bit2coin/util"

// ErrNotFound is returned by Get for absent keys. A read miss is an expected
// outcome, not a failure; callers translate it into a zero value where the
// domain defines one.
const ErrNotFound = util.ErrorString("kvdb: not found")

type Putter interface {
	Put(key []byte, value []byte) error
}

type Deleter interface {
	Delete(key []byte) error
}

// Database is a durable key-value store. Put/Delete are single-key atomic;
// multi-key atomicity is only available through NewBatch. Close flushes all
// acknowledged writes, and reopening the same path observes exactly the last
// durable state.
type Database interface {
	Putter
	Deleter
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	NewBatch() Batch
	Close() error
}

// Batch collects writes and deletes to be committed as one atomic unit.
// A reader never observes a partially applied batch, including across a
// crash between Write and the next open of the store.
type Batch interface {
	Putter
	Deleter
	Write() error
	ValueSize() int
	Reset()
}

// DeleteReporting deletes key and reports whether a value existed.
func DeleteReporting(db Database, key []byte) (existed bool, err error) {
	if existed, err = db.Has(key); err != nil || !existed {
		return
	}
	return existed, db.Delete(key)
}
