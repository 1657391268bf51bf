package kvdb

import (
	"encoding/json"

	"github.com/furaguy/bit2coin/util"
)

const ErrUnknownBackend = util.ErrorString("kvdb: unknown backend type")

type Factory interface {
	NewDB() (Database, error)
}

type LevelDBFactory struct {
	File    string `json:"file"`
	Cache   int    `json:"cache"`
	Handles int    `json:"handles"`
}

func (self *LevelDBFactory) NewDB() (Database, error) {
	return NewLDBDatabase(self.File, self.Cache, self.Handles)
}

type MemoryFactory struct{}

func (self *MemoryFactory) NewDB() (Database, error) {
	return NewMemDatabase(), nil
}

var FactoryRegistry = map[string]func() Factory{
	"leveldb": func() Factory {
		return new(LevelDBFactory)
	},
	"memory": func() Factory {
		return new(MemoryFactory)
	},
}

// GenericFactory selects a backend from a JSON document of the form
// {"type": "leveldb", "options": {...}}.
type GenericFactory struct {
	Type    string
	Factory Factory
}

func (self *GenericFactory) NewDB() (Database, error) {
	return self.Factory.NewDB()
}

func (self *GenericFactory) UnmarshalJSON(b []byte) error {
	var head struct {
		Type    string          `json:"type"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	newFactory, ok := FactoryRegistry[head.Type]
	if !ok {
		return ErrUnknownBackend
	}
	self.Type, self.Factory = head.Type, newFactory()
	if len(head.Options) == 0 {
		return nil
	}
	return json.Unmarshal(head.Options, self.Factory)
}
