package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClockCarriesRemainder(t *testing.T) {
	c := newFixedClock(20*time.Millisecond, 5)

	steps, dropped := c.advance(30 * time.Millisecond)
	assert.Equal(t, 1, steps)
	assert.Zero(t, dropped)

	steps, _ = c.advance(10 * time.Millisecond)
	assert.Equal(t, 1, steps, "10ms carried from the previous frame")

	steps, _ = c.advance(5 * time.Millisecond)
	assert.Zero(t, steps)
}

func TestFixedClockCapsSteps(t *testing.T) {
	c := newFixedClock(10*time.Millisecond, 3)

	steps, dropped := c.advance(75 * time.Millisecond)
	assert.Equal(t, 3, steps)
	assert.Equal(t, 45*time.Millisecond, dropped)

	steps, dropped = c.advance(10 * time.Millisecond)
	assert.Equal(t, 1, steps, "nothing carried after a capped frame")
	assert.Zero(t, dropped)
}
