package state

import (
	"fmt"

	"github.com/furaguy/bit2coin/util"
)

// Validation errors: the operation is rejected and no state is mutated.
const (
	ErrInvalidLink       = util.ErrorString("state: block does not link to the current head")
	ErrDuplicateBlock    = util.ErrorString("state: block already applied")
	ErrNotHead           = util.ErrorString("state: block is not the chain head")
	ErrHistoryMismatch   = util.ErrorString("state: history tail does not match reverted transaction")
	ErrInsufficientFunds = util.ErrorString("state: sender balance would go negative")
)

// ErrStorage wraps backend failures. A failed batch leaves no partial
// mutation visible; the caller decides whether to retry the whole operation.
const ErrStorage = util.ErrorString("state: storage failure")

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
