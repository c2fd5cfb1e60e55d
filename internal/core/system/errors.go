package system

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUninitialized     = errors.New("system is not initialized")
	ErrDestroyed         = errors.New("system has already been destroyed")
	ErrAlreadyCreated    = errors.New("system has already been created")
	ErrDeclarationClosed = errors.New("declarations are only allowed before the system is created")
	ErrNilSystem         = errors.New("nil system")
	ErrNotSystem         = errors.New("type does not implement System")
	ErrUnknownType       = errors.New("no factory registered for system type")
	ErrAddSelf           = errors.New("cannot add a group to its own update list")
	ErrContainmentCycle  = errors.New("group would contain itself")
	ErrManualRemove      = errors.New("cannot remove systems from a group with automatic sorting disabled")
	ErrNotInWorld        = errors.New("system does not exist in the world")
	ErrOrderFirstAndLast = errors.New("a system cannot be both OrderFirst and OrderLast in the same group")
	ErrNotGroup          = errors.New("system is not a group")
	ErrCycle             = errors.New("circular update dependency")
)

// CycleError reports a set of sibling systems whose ordering constraints form
// a loop. Chain lists the types in update order; the last one must update
// before the first.
type CycleError struct {
	Group TypeID
	Chain []TypeID
}

func (e *CycleError) Error() string {
	names := make([]string, 0, len(e.Chain)+1)
	for _, t := range e.Chain {
		names = append(names, t.String())
	}
	if len(e.Chain) > 0 {
		names = append(names, e.Chain[0].String())
	}
	return fmt.Sprintf("%v in group %s: %s", ErrCycle, e.Group, strings.Join(names, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }
