package statemachine_test

import (
	"errors"
	"testing"

	domainerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
	"solomon/contexts/number-marketplace/activation-service/domain/statemachine"
)

func TestLegalTransitions(t *testing.T) {
	cases := []struct {
		from, to statemachine.State
	}{
		{statemachine.Init, statemachine.Reserved},
		{statemachine.Reserved, statemachine.Active},
		{statemachine.Reserved, statemachine.Failed},
		{statemachine.Reserved, statemachine.Cancelled},
		{statemachine.Active, statemachine.Received},
		{statemachine.Active, statemachine.Expired},
		{statemachine.Active, statemachine.Cancelled},
		{statemachine.Expired, statemachine.Refunded},
		{statemachine.Failed, statemachine.Refunded},
		{statemachine.Cancelled, statemachine.Refunded},
	}
	for _, tc := range cases {
		if err := statemachine.Validate(tc.from, tc.to); err != nil {
			t.Fatalf("expected %s -> %s to be legal, got %v", tc.from, tc.to, err)
		}
	}
}

func TestIllegalTransitions(t *testing.T) {
	cases := []struct {
		from, to statemachine.State
	}{
		{statemachine.Init, statemachine.Active},
		{statemachine.Received, statemachine.Active},
		{statemachine.Refunded, statemachine.Active},
		{statemachine.Reserved, statemachine.Received},
		{statemachine.Active, statemachine.Refunded},
	}
	for _, tc := range cases {
		err := statemachine.Validate(tc.from, tc.to)
		if !errors.Is(err, domainerrors.ErrInvalidTransition) {
			t.Fatalf("expected %s -> %s to be illegal, got %v", tc.from, tc.to, err)
		}
	}
}

func TestSameStateIsNoop(t *testing.T) {
	if err := statemachine.Validate(statemachine.Active, statemachine.Active); err != nil {
		t.Fatalf("expected same-state transition to validate cleanly, got %v", err)
	}
}

func TestRefundableAndTerminal(t *testing.T) {
	for _, state := range []statemachine.State{statemachine.Expired, statemachine.Failed, statemachine.Cancelled} {
		if !statemachine.Refundable(state) {
			t.Fatalf("expected %s to be refundable", state)
		}
	}
	if statemachine.Refundable(statemachine.Active) {
		t.Fatalf("expected ACTIVE to not be refundable")
	}
	for _, state := range []statemachine.State{statemachine.Received, statemachine.Refunded} {
		if !statemachine.Terminal(state) {
			t.Fatalf("expected %s to be terminal", state)
		}
	}
	if statemachine.Terminal(statemachine.Reserved) {
		t.Fatalf("expected RESERVED to not be terminal")
	}
}
