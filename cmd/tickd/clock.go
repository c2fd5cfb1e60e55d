package main

import "time"

// fixedClock turns variable frame deltas into a whole number of fixed steps.
// Time beyond maxSteps per frame is dropped rather than carried, so a stall
// never turns into a burst of catch-up steps.
type fixedClock struct {
	step     time.Duration
	maxSteps int
	acc      time.Duration
}

func newFixedClock(step time.Duration, maxSteps int) *fixedClock {
	return &fixedClock{step: step, maxSteps: maxSteps}
}

// advance adds dt and returns how many fixed steps to run this frame and how
// much accumulated time was discarded.
func (c *fixedClock) advance(dt time.Duration) (steps int, dropped time.Duration) {
	c.acc += dt
	steps = int(c.acc / c.step)
	if steps > c.maxSteps {
		steps = c.maxSteps
		dropped = c.acc - time.Duration(steps)*c.step
		c.acc = 0
		return steps, dropped
	}
	c.acc -= time.Duration(steps) * c.step
	return steps, 0
}
