// Package schedule implements the adaptive polling schedule of §4.5.1: a
// pure function from an item's age, SMS count, and circuit state to the
// delay before its next poll. It holds no state and performs no I/O.
package schedule

import (
	"math/rand"
	"time"
)

var (
	preSmsThresholds = []int{30, 120, 300, 600, 900, 1200}
	preSmsCycles     = [][]int{
		{2, 3, 4, 5},
		{4, 5, 6, 7},
		{6, 8, 10, 8},
		{10, 12, 15, 12},
		{12, 15, 18, 15},
		{15, 20, 25, 20},
	}
	postSmsThresholds = []int{30, 120}
	postSmsCycles     = [][]int{
		{3, 4, 5, 4},
		{5, 6, 7, 6},
		{8, 10, 12, 10},
	}
)

const batchedEligibleAgeSeconds = 60

// Input carries the inputs to the schedule function named in §4.5.1.
type Input struct {
	OrderAgeSeconds     int
	SmsCount            int
	SecondsSinceLastSms int
	PollAttempt         int
	CircuitOpen         bool
	Jitter              func(maxExclusive float64) float64
}

// Decision is the outcome of the schedule function: the delay before the
// next poll tick and whether this item is eligible for the batched path.
type Decision struct {
	Delay           time.Duration
	BatchedEligible bool
	SingleCallMode  bool
}

// Next applies three schedule rules in priority order: an open circuit
// always wins, then the post-SMS phase, then the pre-SMS phase by order
// age. Input carries no last-poll-error flag, so an item whose previous
// poll failed is scheduled by these same rules. Jitter defaults to a uniform draw in [0, 0.3*base) unless the
// caller injects a deterministic source for testing.
func Next(in Input) Decision {
	jitter := in.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}

	if in.CircuitOpen {
		base := powInt(2, minInt(in.PollAttempt, 5))
		if base > 30 {
			base = 30
		}
		delay := time.Duration(base)*time.Second + time.Duration(jitter(2)*float64(time.Second))
		return Decision{Delay: delay, SingleCallMode: true}
	}

	if in.SmsCount > 0 {
		cycle := selectCycle(postSmsCycles, postSmsThresholds, in.SecondsSinceLastSms)
		base := cycle[in.PollAttempt%len(cycle)]
		return Decision{Delay: withJitter(base, jitter)}
	}

	cycle := selectCycle(preSmsCycles, preSmsThresholds, in.OrderAgeSeconds)
	base := cycle[in.PollAttempt%len(cycle)]
	return Decision{
		Delay:           withJitter(base, jitter),
		BatchedEligible: in.OrderAgeSeconds > batchedEligibleAgeSeconds,
	}
}

func selectCycle(cycles [][]int, thresholds []int, age int) []int {
	for i, threshold := range thresholds {
		if age <= threshold {
			return cycles[i]
		}
	}
	return cycles[len(cycles)-1]
}

func withJitter(baseSeconds int, jitter func(float64) float64) time.Duration {
	base := time.Duration(baseSeconds) * time.Second
	return base + time.Duration(jitter(0.3*float64(base)))
}

func defaultJitter(maxExclusive float64) float64 {
	if maxExclusive <= 0 {
		return 0
	}
	return rand.Float64() * maxExclusive
}

func powInt(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
