package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/database/dbtest"
	"github.com/sbw-site/geotrack/internal/pkg/cron"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newRouter(t *testing.T, redisErr error) (*gin.Engine, *cron.Scheduler, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sched := cron.New(zap.NewNop())
	ran := make(chan cron.Run, 1)
	sched.Register(cron.Job{
		Name:     "user_movement_hourly",
		Interval: time.Hour,
		Align:    true,
		Fn: func(ctx context.Context, run cron.Run) error {
			ran <- run
			return nil
		},
	})
	t.Cleanup(func() {
		select {
		case <-ran:
		default:
		}
	})

	logDir := t.TempDir()
	r := gin.New()
	RegisterRoutes(r.Group("/api"), Deps{
		DB:     dbtest.Open(t),
		Redis:  pinger{err: redisErr},
		Sched:  sched,
		LogDir: logDir,
	}, func(c *gin.Context) { c.Next() })
	return r, sched, logDir
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	r, _, _ := newRouter(t, nil)

	w := do(r, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status   string          `json:"status"`
		Database bool            `json:"database"`
		Redis    bool            `json:"redis"`
		Jobs     []cron.ListItem `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Database)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "user_movement_hourly", body.Jobs[0].Name)

	assert.JSONEq(t, `{"data":"pong"}`, do(r, http.MethodGet, "/api/ping").Body.String())
}

func TestHealthDegradedWhenRedisDown(t *testing.T) {
	r, _, _ := newRouter(t, errors.New("connection refused"))

	w := do(r, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestCronRoutes(t *testing.T) {
	r, sched, _ := newRouter(t, nil)

	w := do(r, http.MethodGet, "/api/cron")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user_movement_hourly")

	w = do(r, http.MethodPost, "/api/cron/user_movement_hourly/run")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Eventually(t, func() bool {
		res, err := sched.GetTask("user_movement_hourly")
		return err == nil && res.Status == cron.StatusFulfill
	}, 2*time.Second, 10*time.Millisecond)

	w = do(r, http.MethodPost, "/api/cron/missing/run")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/cron/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogRoutes(t *testing.T) {
	r, _, dir := newRouter(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stdout_2024-03-10.log"), []byte("hello\n"), 0o644))

	w := do(r, http.MethodGet, "/api/health/log")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stdout_2024-03-10.log")

	w = do(r, http.MethodGet, "/api/health/log/stdout_2024-03-10.log")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello\n", w.Body.String())

	w = do(r, http.MethodGet, "/api/health/log/nope.log")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
