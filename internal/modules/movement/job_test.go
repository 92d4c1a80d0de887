package movement

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
	"github.com/sbw-site/geotrack/internal/pkg/cron"
)

type fakeLocker struct {
	mu    sync.Mutex
	taken map[string]bool
	err   error
	keys  []string
}

func (l *fakeLocker) TryLock(_ context.Context, key, _ string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, l.err
	}
	if l.taken == nil {
		l.taken = map[string]bool{}
	}
	if l.taken[key] {
		return false, nil
	}
	l.taken[key] = true
	return true, nil
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (m *memArchive) Put(_ context.Context, key string, body []byte, contentType string) error {
	if m.fail {
		return errors.New("bucket unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = body
	return nil
}

func jobFixture() (*fakePings, *fakeParams, *fakeDispatcher) {
	pings := &fakePings{
		rows: map[string][]models.LocationData{
			"alice": {stored("alice", 0, 0, 10*time.Minute), stored("alice", 0, 0.00005, 20*time.Minute)},
			"bob":   {stored("bob", 5, 5, 30*time.Minute)},
		},
		fail: map[string]error{"carol": apperr.Persistence(errors.New("timeout"), "load pings")},
	}
	return pings, &fakeParams{params: periphery.Params{Radius: 20, Minutes: 20}}, &fakeDispatcher{}
}

func TestJobRun(t *testing.T) {
	pings, params, disp := jobFixture()
	arch := &memArchive{}
	core, logs := observer.New(zap.InfoLevel)
	job := NewJob(NewService(pings, params, disp, nil), JobOptions{
		Workers:      2,
		Archiver:     arch,
		PathTemplate: "movement/{Y}/{m}/{d}/{H}/{filename}",
	}, zap.New(core))

	end := t0.Add(time.Hour)
	stats, err := job.run(context.Background(), cron.Run{At: end, Manual: true})
	require.NoError(t, err)

	assert.Equal(t, JobStats{Users: 3, Analyzed: 2, Failed: 1, Archived: 2}, stats)
	assert.Equal(t, 1, params.fetches, "params are fetched once per run")
	assert.Len(t, disp.calls["alice"], 2)
	assert.Len(t, disp.calls["bob"], 1)

	body, ok := arch.objects["movement/2024/03/10/10/alice.json"]
	require.True(t, ok, "archived keys: %v", arch.objects)
	var rep Report
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, "alice", rep.User)
	assert.True(t, rep.StartTime.Equal(t0))
	assert.Equal(t, 2, rep.PointsCount)

	assert.Equal(t, 1, logs.FilterMessage("user analysis failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("movement run finished").Len())
}

func TestJobRunWindow(t *testing.T) {
	pings, params, disp := jobFixture()
	job := NewJob(NewService(pings, params, disp, nil), JobOptions{Lookback: 30 * time.Minute}, nil)

	end := t0.Add(time.Hour)
	_, err := job.run(context.Background(), cron.Run{At: end, Manual: true})
	require.NoError(t, err)

	require.NotEmpty(t, pings.ranges)
	assert.True(t, pings.ranges[0].Equal(end.Add(-30*time.Minute)))
	assert.True(t, pings.ranges[1].Equal(end))
}

func TestJobScheduledRunTakesSlotLock(t *testing.T) {
	pings, params, disp := jobFixture()
	locker := &fakeLocker{}
	job := NewJob(NewService(pings, params, disp, nil), JobOptions{Locker: locker, Owner: "replica-a"}, nil)
	run := cron.Run{At: t0.Add(time.Hour)}

	first, err := job.run(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Users)

	second, err := job.run(context.Background(), run)
	require.NoError(t, err)
	assert.Zero(t, second.Users, "second replica must skip a claimed slot")
	assert.Equal(t, []string{lockPrefix + "2024031010", lockPrefix + "2024031010"}, locker.keys)

	manual, err := job.run(context.Background(), cron.Run{At: run.At, Manual: true})
	require.NoError(t, err)
	assert.Equal(t, 3, manual.Users)
	assert.Len(t, locker.keys, 2, "manual runs bypass the lock")
}

func TestJobLockErrorDoesNotBlockRun(t *testing.T) {
	pings, params, disp := jobFixture()
	job := NewJob(NewService(pings, params, disp, nil), JobOptions{Locker: &fakeLocker{err: errors.New("redis down")}}, nil)

	stats, err := job.run(context.Background(), cron.Run{At: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Users)
}

func TestJobArchiveFailureIsCounted(t *testing.T) {
	pings, params, disp := jobFixture()
	job := NewJob(NewService(pings, params, disp, nil), JobOptions{Archiver: &memArchive{fail: true}}, nil)

	stats, err := job.run(context.Background(), cron.Run{At: t0.Add(time.Hour), Manual: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Analyzed)
	assert.Zero(t, stats.Archived)
}

func TestJobActiveUsersError(t *testing.T) {
	pings := &fakePings{usersErr: apperr.Persistence(errors.New("gone"), "list users")}
	job := NewJob(NewService(pings, &fakeParams{}, nil, nil), JobOptions{}, nil)

	err := job.Run(context.Background(), cron.Run{At: t0, Manual: true})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func TestJobDefinition(t *testing.T) {
	job := NewJob(NewService(&fakePings{}, &fakeParams{}, nil, nil), JobOptions{}, nil)
	def := job.Definition()
	assert.Equal(t, JobName, def.Name)
	assert.Equal(t, time.Hour, def.Interval)
	assert.True(t, def.Align)
	assert.NotNil(t, def.Fn)
}
