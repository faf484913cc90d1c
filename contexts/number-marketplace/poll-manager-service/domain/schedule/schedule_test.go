package schedule_test

import (
	"testing"
	"time"

	"solomon/contexts/number-marketplace/poll-manager-service/domain/schedule"
)

func noJitter(float64) float64 { return 0 }

func TestCircuitOpenTakesPriorityAndCapsAtThirtySeconds(t *testing.T) {
	decision := schedule.Next(schedule.Input{
		CircuitOpen: true,
		PollAttempt: 10,
		SmsCount:    3,
		Jitter:      noJitter,
	})
	if !decision.SingleCallMode {
		t.Fatalf("expected single-call mode while the circuit is open")
	}
	if decision.Delay != 30*time.Second {
		t.Fatalf("expected the delay to cap at 30s, got %v", decision.Delay)
	}
}

func TestCircuitOpenBacksOffExponentially(t *testing.T) {
	decision := schedule.Next(schedule.Input{CircuitOpen: true, PollAttempt: 2, Jitter: noJitter})
	if decision.Delay != 4*time.Second {
		t.Fatalf("expected 2^2=4s backoff, got %v", decision.Delay)
	}
}

func TestPostSmsPhaseSelectsCycleByRecency(t *testing.T) {
	decision := schedule.Next(schedule.Input{
		SmsCount:            1,
		SecondsSinceLastSms: 10,
		PollAttempt:         0,
		Jitter:              noJitter,
	})
	if decision.Delay != 3*time.Second {
		t.Fatalf("expected the first post-SMS recent-cycle value of 3s, got %v", decision.Delay)
	}

	decision = schedule.Next(schedule.Input{
		SmsCount:            1,
		SecondsSinceLastSms: 200,
		PollAttempt:         0,
		Jitter:              noJitter,
	})
	if decision.Delay != 8*time.Second {
		t.Fatalf("expected the oldest post-SMS cycle's first value of 8s, got %v", decision.Delay)
	}
}

func TestPreSmsPhaseSelectsCycleByOrderAge(t *testing.T) {
	decision := schedule.Next(schedule.Input{
		OrderAgeSeconds: 10,
		PollAttempt:     0,
		Jitter:          noJitter,
	})
	if decision.Delay != 2*time.Second {
		t.Fatalf("expected the freshest pre-SMS cycle's first value of 2s, got %v", decision.Delay)
	}
	if decision.BatchedEligible {
		t.Fatalf("expected a fresh order to not yet be batch-eligible")
	}

	decision = schedule.Next(schedule.Input{
		OrderAgeSeconds: 1300,
		PollAttempt:     1,
		Jitter:          noJitter,
	})
	if decision.Delay != 20*time.Second {
		t.Fatalf("expected the oldest pre-SMS cycle's second value of 20s, got %v", decision.Delay)
	}
	if !decision.BatchedEligible {
		t.Fatalf("expected an order older than 60s to be batch-eligible")
	}
}

func TestCycleIndexWrapsOnPollAttempt(t *testing.T) {
	decision := schedule.Next(schedule.Input{OrderAgeSeconds: 10, PollAttempt: 4, Jitter: noJitter})
	if decision.Delay != 2*time.Second {
		t.Fatalf("expected attempt 4 to wrap back to cycle index 0 (2s), got %v", decision.Delay)
	}
}

func TestJitterIsBoundedByThirtyPercentOfBase(t *testing.T) {
	decision := schedule.Next(schedule.Input{
		OrderAgeSeconds: 10,
		PollAttempt:     0,
		Jitter:          func(max float64) float64 { return max },
	})
	// base is 2s, so jitter should add up to 0.3*2s = 0.6s.
	if decision.Delay != 2*time.Second+600*time.Millisecond {
		t.Fatalf("expected jitter to add at most 30%% of the base delay, got %v", decision.Delay)
	}
}
