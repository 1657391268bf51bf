package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/furaguy/bit2coin/util"
	"github.com/furaguy/bit2coin/util/keccak256"
)

const ErrNegativeAmount = util.ErrorString("transaction amount is negative")

// Transaction is an immutable value transfer. ID is derived from the other
// fields at construction time, with Timestamp acting as the uniqueness salt,
// and is never recomputed afterwards.
type Transaction struct {
	Sender    common.Address
	Recipient common.Address
	Amount    *big.Int
	Timestamp uint64
	ID        common.Hash
}

type tx_content struct {
	Sender    common.Address
	Recipient common.Address
	Amount    *big.Int
	Timestamp uint64
}

func NewTransaction(sender, recipient common.Address, amount *big.Int, timestamp uint64) (*Transaction, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	self := &Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    new(big.Int).Set(amount),
		Timestamp: timestamp,
	}
	self.ID = self.computeID()
	return self, nil
}

func (self *Transaction) computeID() common.Hash {
	enc, err := rlp.EncodeToBytes(&tx_content{self.Sender, self.Recipient, self.Amount, self.Timestamp})
	util.PanicIfNotNil(err)
	return keccak256.Hash(enc)
}

// Verify recomputes the ID from the transaction contents.
func (self *Transaction) Verify() bool {
	return self.Amount.Sign() >= 0 && self.ID == self.computeID()
}
