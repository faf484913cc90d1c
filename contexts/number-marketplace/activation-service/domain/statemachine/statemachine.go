// Package statemachine is the pure validator behind activation transitions.
// It holds no state of its own and performs no I/O.
package statemachine

import (
	"fmt"

	domainerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
)

type State string

const (
	Init      State = "INIT"
	Reserved  State = "RESERVED"
	Active    State = "ACTIVE"
	Received  State = "RECEIVED"
	Expired   State = "EXPIRED"
	Cancelled State = "CANCELLED"
	Failed    State = "FAILED"
	Refunded  State = "REFUNDED"
)

var allowed = map[State]map[State]bool{
	Init:      {Reserved: true},
	Reserved:  {Active: true, Failed: true, Cancelled: true},
	Active:    {Received: true, Expired: true, Cancelled: true},
	Expired:   {Refunded: true},
	Failed:    {Refunded: true},
	Cancelled: {Refunded: true},
}

var refundableStates = map[State]bool{
	Expired:   true,
	Failed:    true,
	Cancelled: true,
}

var terminalStates = map[State]bool{
	Received: true,
	Refunded: true,
}

// Validate reports whether from→to is a legal transition. It never mutates
// anything; it is the single source of truth for §4.1's transition table.
func Validate(from, to State) error {
	if from == to {
		return nil
	}
	if allowed[from][to] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidTransition, from, to)
}

func Refundable(state State) bool { return refundableStates[state] }

func Terminal(state State) bool { return terminalStates[state] }
