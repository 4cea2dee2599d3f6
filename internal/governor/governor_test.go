package governor_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/estimate"
	"github.com/vytor/ceplayer/internal/governor"
	"github.com/vytor/ceplayer/internal/scheduler"
)

type harness struct {
	clock *clockwork.FakeClock
	loop  *scheduler.Loop
	gov   *governor.Governor
	opens []string
}

func newHarness() *harness {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	loop := scheduler.NewLoop(clock, 100*time.Millisecond)
	h := &harness{clock: clock, loop: loop, gov: governor.New(loop, time.Second)}
	h.gov.OnOpen(func(id string) { h.opens = append(h.opens, id) })
	return h
}

// advance moves the clock forward one second at a time, firing due ticks along the way.
func (h *harness) advance(seconds int) {
	for range seconds {
		h.clock.Advance(time.Second)
		h.loop.Fire()
	}
}

func TestGovernor_OpensWhenRequiredTimeElapses(t *testing.T) {
	h := newHarness()
	h.gov.Enter("h1-b1", 10)

	snap := h.gov.Snapshot()
	assert.False(t, snap.CanAdvance)
	assert.Equal(t, 10, snap.TimeRemaining)
	assert.Equal(t, "0:10", snap.TimeRemainingDisplay)
	assert.Zero(t, snap.ProgressPercent)

	h.advance(9)
	assert.False(t, h.gov.CanAdvance())
	assert.Equal(t, 1, h.gov.Snapshot().TimeRemaining)
	assert.InDelta(t, 90.0, h.gov.Snapshot().ProgressPercent, 0.001)
	assert.Empty(t, h.opens)

	h.advance(1)
	assert.True(t, h.gov.CanAdvance())
	assert.Equal(t, []string{"h1-b1"}, h.opens)
	assert.Equal(t, 100.0, h.gov.Snapshot().ProgressPercent)
	assert.Zero(t, h.loop.Len(), "tick is released once the gate opens")
}

func TestGovernor_StaysOpenWhenEstimateGrows(t *testing.T) {
	h := newHarness()
	h.gov.Enter("b", 5)
	h.advance(5)
	require.True(t, h.gov.CanAdvance())

	h.gov.UpdateEstimate(500)
	assert.True(t, h.gov.CanAdvance(), "an open gate never closes for the same block")
	assert.Equal(t, []string{"b"}, h.opens, "open fires once")
}

func TestGovernor_LateAudioDuration(t *testing.T) {
	h := newHarness()
	fallback := estimate.Estimate(estimate.BlockShape{}, estimate.GovernorBuffer)
	h.gov.Enter("narrated", fallback)

	h.advance(5)
	resolved := estimate.Estimate(estimate.BlockShape{AudioSeconds: 42.3}, estimate.GovernorBuffer)
	require.Equal(t, 47, resolved)
	h.gov.UpdateEstimate(resolved)

	snap := h.gov.Snapshot()
	assert.Equal(t, 47, snap.RequiredSeconds)
	assert.Equal(t, 42, snap.TimeRemaining, "elapsed time since entry is kept across the revision")

	h.advance(41)
	assert.False(t, h.gov.CanAdvance())
	h.advance(1)
	assert.True(t, h.gov.CanAdvance())
}

func TestGovernor_ShrinkingEstimateOpensImmediately(t *testing.T) {
	h := newHarness()
	h.gov.Enter("b", 120)
	h.advance(40)
	h.gov.UpdateEstimate(30)
	assert.True(t, h.gov.CanAdvance())
	assert.Equal(t, []string{"b"}, h.opens)
}

func TestGovernor_EnterResetsGate(t *testing.T) {
	h := newHarness()
	h.gov.Enter("first", 3)
	h.advance(3)
	require.True(t, h.gov.CanAdvance())

	h.gov.Enter("second", 3)
	assert.False(t, h.gov.CanAdvance())
	assert.Equal(t, "second", h.gov.BlockID())
	assert.Equal(t, 1, h.loop.Len(), "only the current block's tick is registered")
}

func TestGovernor_EnterTwiceKeepsSingleTick(t *testing.T) {
	h := newHarness()
	h.gov.Enter("a", 60)
	h.gov.Enter("b", 60)
	assert.Equal(t, 1, h.loop.Len())
}

func TestGovernor_ZeroRequirementOpensOnEntry(t *testing.T) {
	h := newHarness()
	h.gov.Enter("empty", 0)
	assert.True(t, h.gov.CanAdvance())
	assert.Equal(t, []string{"empty"}, h.opens)
}

func TestGovernor_StopClosesAndReleasesTick(t *testing.T) {
	h := newHarness()
	h.gov.Enter("b", 60)
	h.gov.Stop()
	assert.Zero(t, h.loop.Len())
	assert.False(t, h.gov.CanAdvance())

	h.gov.UpdateEstimate(1)
	h.advance(5)
	assert.False(t, h.gov.CanAdvance(), "a stopped governor ignores revisions")
	assert.Empty(t, h.opens)
}

func TestGovernor_OpenMeasuredByWallClockNotTicks(t *testing.T) {
	h := newHarness()
	h.gov.Enter("b", 30)

	// A suspended tab: no ticks fire while the clock jumps.
	h.clock.Advance(45 * time.Second)
	assert.True(t, h.gov.CanAdvance())
}
