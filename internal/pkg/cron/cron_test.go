package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestRegisterAlignsToInterval(t *testing.T) {
	s := New(nil)
	s.now = fixedClock(time.Date(2024, 5, 1, 10, 17, 42, 0, time.UTC))

	s.Register(Job{Name: "hourly", Interval: time.Hour, Align: true, Fn: func(context.Context, Run) error { return nil }})
	s.Register(Job{Name: "loose", Interval: time.Hour, Fn: func(context.Context, Run) error { return nil }})

	items := s.List()
	require.Len(t, items, 2)
	assert.Equal(t, "hourly", items[0].Name)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC), *items[0].NextDate)
	assert.Equal(t, time.Date(2024, 5, 1, 11, 17, 42, 0, time.UTC), *items[1].NextDate)
}

func TestAlignOnBoundaryMovesToNextSlot(t *testing.T) {
	j := Job{Interval: time.Hour, Align: true}
	at := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Hour), j.next(at))
}

func TestRunRecordsOutcome(t *testing.T) {
	s := New(nil)
	runs := make(chan Run, 1)
	s.Register(Job{
		Name:     "failing",
		Interval: time.Hour,
		Fn: func(_ context.Context, run Run) error {
			runs <- run
			return errors.New("boom")
		},
	})

	require.NoError(t, s.Run(context.Background(), "failing"))
	run := <-runs
	assert.True(t, run.Manual)

	require.Eventually(t, func() bool {
		task, err := s.GetTask("failing")
		return err == nil && task.Status == StatusReject && task.Message == "boom"
	}, time.Second, 10*time.Millisecond)

	assert.Error(t, s.Run(context.Background(), "missing"))
	_, err := s.GetTask("missing")
	assert.Error(t, err)
}

func TestStartFiresScheduledRun(t *testing.T) {
	s := New(nil)
	runs := make(chan Run, 1)
	s.Register(Job{
		Name:     "tick",
		Interval: 20 * time.Millisecond,
		Fn: func(_ context.Context, run Run) error {
			select {
			case runs <- run:
			default:
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	select {
	case run := <-runs:
		assert.False(t, run.Manual)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}
}
