package pos

import (
	"math/big"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/ethereum/go-ethereum/common"
)

// Registry is the stake-weighted proposer set. It keeps validators in
// insertion order, which doubles as the deterministic tie-break rule for
// Select: among equal cumulative weights the earliest-registered validator
// wins. No internal locking; callers serialize mutations (single-writer
// model).
type Registry struct {
	min_stake   *big.Int
	total_stake *big.Int
	validators  *linkedhashmap.Map // common.Address -> *Validator
	source      Source
}

func NewRegistry(min_stake *big.Int, source Source) *Registry {
	if min_stake == nil {
		min_stake = new(big.Int)
	}
	return &Registry{
		min_stake:   new(big.Int).Set(min_stake),
		total_stake: new(big.Int),
		validators:  linkedhashmap.New(),
		source:      source,
	}
}

// Register admits a new validator. It refuses negative stakes, stakes below
// the minimum, and refuses to overwrite an existing entry: registration is
// not an upsert.
func (self *Registry) Register(v Validator) bool {
	if v.Stake == nil || v.Stake.Sign() < 0 || v.Stake.Cmp(self.min_stake) < 0 {
		return false
	}
	if _, found := self.validators.Get(v.Address); found {
		return false
	}
	stored := v.copy()
	self.validators.Put(v.Address, &stored)
	self.total_stake.Add(self.total_stake, stored.Stake)
	return true
}

func (self *Registry) Remove(address common.Address) bool {
	stored, found := self.validators.Get(address)
	if !found {
		return false
	}
	self.total_stake.Sub(self.total_stake, stored.(*Validator).Stake)
	self.validators.Remove(address)
	return true
}

// UpdateStake overwrites the stake of an existing validator. Stakes are
// non-negative weights, so negative values are refused. The minimum stake is
// deliberately not re-checked here: an update may drop a validator below the
// threshold without evicting it, eviction being a separate, explicit Remove
// call.
func (self *Registry) UpdateStake(address common.Address, new_stake *big.Int) bool {
	if new_stake == nil || new_stake.Sign() < 0 {
		return false
	}
	stored, found := self.validators.Get(address)
	if !found {
		return false
	}
	v := stored.(*Validator)
	self.total_stake.Sub(self.total_stake, v.Stake)
	v.Stake = new(big.Int).Set(new_stake)
	self.total_stake.Add(self.total_stake, v.Stake)
	return true
}

func (self *Registry) Get(address common.Address) (ret Validator, found bool) {
	stored, found := self.validators.Get(address)
	if !found {
		return
	}
	return stored.(*Validator).copy(), true
}

// Validators returns copies of all members in insertion order.
func (self *Registry) Validators() []Validator {
	ret := make([]Validator, 0, self.validators.Size())
	self.validators.Each(func(_ interface{}, stored interface{}) {
		ret = append(ret, stored.(*Validator).copy())
	})
	return ret
}

func (self *Registry) Len() int {
	return self.validators.Size()
}

// SetSource re-aims the draw source. Beacon-driven deployments call this once
// per round, as the beacon depends on the chain head.
func (self *Registry) SetSource(source Source) {
	self.source = source
}

func (self *Registry) TotalStake() *big.Int {
	return new(big.Int).Set(self.total_stake)
}

// Select picks the next proposer by roulette wheel: a point is drawn in
// [0, total_stake) and validators are walked in insertion order until the
// cumulative stake reaches or exceeds it. Larger stakes win proportionally
// more often.
func (self *Registry) Select() (ret Validator, ok bool) {
	if self.validators.Size() == 0 {
		return
	}
	point := new(big.Int)
	if self.total_stake.Sign() > 0 {
		point = self.source.Draw(self.total_stake)
	}
	cumulative := new(big.Int)
	self.validators.Each(func(_ interface{}, stored interface{}) {
		if ok {
			return
		}
		v := stored.(*Validator)
		cumulative.Add(cumulative, v.Stake)
		if cumulative.Cmp(point) >= 0 {
			ret, ok = v.copy(), true
		}
	})
	// point < total_stake == sum of member stakes, so the walk always hits
	if !ok {
		panic("pos: total stake out of sync with member stakes")
	}
	return
}
