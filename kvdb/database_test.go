package kvdb

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDatabaseOps(t *testing.T, db Database) {
	assert := assert.New(t)

	_, err := db.Get([]byte("missing"))
	assert.Equal(ErrNotFound, err)

	assert.NoError(db.Put([]byte("k1"), []byte("v1")))
	got, err := db.Get([]byte("k1"))
	assert.NoError(err)
	assert.Equal([]byte("v1"), got)

	existed, err := DeleteReporting(db, []byte("k1"))
	assert.NoError(err)
	assert.True(existed)
	existed, err = DeleteReporting(db, []byte("k1"))
	assert.NoError(err)
	assert.False(existed)
}

func testBatchVisibility(t *testing.T, db Database) {
	assert := assert.New(t)

	assert.NoError(db.Put([]byte("doomed"), []byte("x")))
	batch := db.NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("doomed"))

	// nothing of the batch is visible before Write
	_, err := db.Get([]byte("a"))
	assert.Equal(ErrNotFound, err)
	has, _ := db.Has([]byte("doomed"))
	assert.True(has)

	assert.NoError(batch.Write())
	got, err := db.Get([]byte("a"))
	assert.NoError(err)
	assert.Equal([]byte("1"), got)
	got, _ = db.Get([]byte("b"))
	assert.Equal([]byte("2"), got)
	has, _ = db.Has([]byte("doomed"))
	assert.False(has)
}

func TestMemDatabase(t *testing.T) {
	testDatabaseOps(t, NewMemDatabase())
	testBatchVisibility(t, NewMemDatabase())
}

func TestLDBDatabase(t *testing.T) {
	db, err := NewLDBDatabase(filepath.Join(t.TempDir(), "db"), 16, 16)
	assert.NoError(t, err)
	defer db.Close()
	testDatabaseOps(t, db)
	testBatchVisibility(t, db)
}

func TestLDBReopen(t *testing.T) {
	assert := assert.New(t)
	file := filepath.Join(t.TempDir(), "db")

	db, err := NewLDBDatabase(file, 16, 16)
	assert.NoError(err)
	batch := db.NewBatch()
	batch.Put([]byte("persisted"), []byte("yes"))
	assert.NoError(batch.Write())
	assert.NoError(db.Close())

	// reopening the same path observes exactly the last durable state
	db, err = NewLDBDatabase(file, 16, 16)
	assert.NoError(err)
	defer db.Close()
	got, err := db.Get([]byte("persisted"))
	assert.NoError(err)
	assert.Equal([]byte("yes"), got)
}

func TestBatchReset(t *testing.T) {
	assert := assert.New(t)
	db := NewMemDatabase()

	batch := db.NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	assert.NotZero(batch.ValueSize())
	batch.Reset()
	assert.Zero(batch.ValueSize())
	assert.NoError(batch.Write())
	_, err := db.Get([]byte("a"))
	assert.Equal(ErrNotFound, err)
}

func TestFactory(t *testing.T) {
	assert := assert.New(t)

	var f GenericFactory
	assert.NoError(json.Unmarshal([]byte(`{"type":"memory"}`), &f))
	db, err := f.NewDB()
	assert.NoError(err)
	assert.IsType(&MemDatabase{}, db)

	cfg := `{"type":"leveldb","options":{"file":"` + filepath.ToSlash(filepath.Join(t.TempDir(), "db")) + `","cache":16,"handles":16}}`
	assert.NoError(json.Unmarshal([]byte(cfg), &f))
	db, err = f.NewDB()
	assert.NoError(err)
	assert.IsType(&LDBDatabase{}, db)
	db.Close()

	assert.Equal(ErrUnknownBackend, json.Unmarshal([]byte(`{"type":"redis"}`), &f))
}
