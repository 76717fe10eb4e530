package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avow-dev/avow/internal/agent"
	"github.com/avow-dev/avow/internal/jsonval"
	"github.com/avow-dev/avow/internal/observe"
)

func TestVirtualClock_SleepAdvancesInstantly(t *testing.T) {
	clk := NewVirtualClock()
	start := clk.Now()

	require.NoError(t, clk.Sleep(context.Background(), 3*time.Second))
	require.NoError(t, clk.Sleep(context.Background(), time.Minute))

	assert.Equal(t, start.Add(63*time.Second), clk.Now())
	assert.Equal(t, []time.Duration{3 * time.Second, time.Minute}, clk.Sleeps())
	assert.Equal(t, 2, clk.SleepCount())
}

func TestVirtualClock_SleepHonorsCancellation(t *testing.T) {
	clk := NewVirtualClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := clk.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, clk.SleepCount())
}

func TestVirtualClock_AdvanceDoesNotRecordSleep(t *testing.T) {
	clk := NewVirtualClock()
	start := clk.Now()
	clk.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), clk.Now())
	assert.Zero(t, clk.SleepCount())
}

func TestScriptedObserver_RepeatsFinalObservation(t *testing.T) {
	converged := &observe.Observation{Objects: []jsonval.Value{jsonval.Str("x")}}
	observer := NewScriptedObserver(&observe.Observation{}, converged)

	assert.Empty(t, observer.Observe(context.Background()).Objects)
	for i := 0; i < 3; i++ {
		assert.Len(t, observer.Observe(context.Background()).Objects, 1)
	}
	assert.Equal(t, 4, observer.Calls())
}

func TestScriptedUpdater_FailNext(t *testing.T) {
	updater := NewScriptedUpdater(
		agent.StateUpdate{State: agent.StateRunning},
		agent.StateUpdate{State: agent.StateSucceeded},
	).FailNext(1, errors.New("connection reset"))

	update, err := updater.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, agent.StateRunning, update.State)

	_, err = updater.Update(context.Background())
	assert.EqualError(t, err, "connection reset")

	update, err = updater.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, agent.StateSucceeded, update.State)
}

func TestScriptedAgent_FreshStatusPerExecute(t *testing.T) {
	scripted := NewScriptedAgent(
		agent.StateUpdate{State: agent.StateRunning},
		agent.StateUpdate{State: agent.StateSucceeded},
	)
	op := agent.Operation{Title: "create", Agent: scripted}

	first := op.Execute(context.Background())
	second := op.Execute(context.Background())
	require.NotSame(t, first, second)

	first.Refresh(context.Background())
	assert.Equal(t, agent.StateSucceeded, first.State())
	assert.Equal(t, agent.StateRunning, second.State(), "statuses must not share updater progress")

	assert.Equal(t, []string{"create", "create"}, scripted.Executed())
}
