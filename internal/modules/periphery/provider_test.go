package periphery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sbw-site/geotrack/internal/database/dbtest"
	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
)

func seedURL(t *testing.T, db *gorm.DB, key, url string) {
	t.Helper()
	require.NoError(t, db.Create(&models.APIConfig{Key: key, URL: url}).Error)
}

func paramsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParams(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Params
	}{
		{"full", http.StatusOK, `{"message":{"radius":35.5,"minutes":15}}`, Params{Radius: 35.5, Minutes: 15}},
		{"radius only", http.StatusOK, `{"message":{"radius":50}}`, Params{Radius: 50, Minutes: 20}},
		{"minutes only", http.StatusOK, `{"message":{"minutes":5}}`, Params{Radius: 20, Minutes: 5}},
		{"numeric strings", http.StatusOK, `{"message":{"radius":"12.5","minutes":"30"}}`, Params{Radius: 12.5, Minutes: 30}},
		{"empty message", http.StatusOK, `{"message":null}`, Defaults()},
		{"no message", http.StatusOK, `{}`, Defaults()},
		{"malformed", http.StatusOK, `{"message":`, Defaults()},
		{"non numeric", http.StatusOK, `{"message":{"radius":"wide"}}`, Defaults()},
		{"zero minutes", http.StatusOK, `{"message":{"minutes":0}}`, Defaults()},
		{"huge minutes", http.StatusOK, `{"message":{"minutes":200000000}}`, Defaults()},
		{"minutes past week", http.StatusOK, `{"message":{"minutes":10081}}`, Defaults()},
		{"week of minutes", http.StatusOK, `{"message":{"minutes":10080}}`, Params{Radius: 20, Minutes: 10080}},
		{"infinite radius", http.StatusOK, `{"message":{"radius":"Inf"}}`, Defaults()},
		{"server error", http.StatusInternalServerError, `{"message":{"radius":99}}`, Defaults()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := dbtest.Open(t)
			srv := paramsServer(t, tc.status, tc.body)
			seedURL(t, db, KeyParamsAPI, srv.URL)

			p := NewProvider(db, Options{Timeout: time.Second}, nil)
			assert.Equal(t, tc.want, p.Params(context.Background()))
		})
	}
}

func TestParamsSendsConfiguredHeaders(t *testing.T) {
	db := dbtest.Open(t)
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte(`{"message":{"radius":10,"minutes":10}}`))
	}))
	defer srv.Close()
	seedURL(t, db, KeyParamsAPI, srv.URL)

	p := NewProvider(db, Options{Headers: map[string]string{"Cookie": "sid=Guest"}}, nil)
	assert.Equal(t, Params{Radius: 10, Minutes: 10}, p.Params(context.Background()))
	assert.Equal(t, "sid=Guest", cookie)
}

func TestParamsUnreachableFallsBack(t *testing.T) {
	db := dbtest.Open(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	seedURL(t, db, KeyParamsAPI, url)

	p := NewProvider(db, Options{Timeout: time.Second}, nil)
	assert.Equal(t, Params{Radius: 20, Minutes: 20}, p.Params(context.Background()))
}

func TestParamsMissingKeyFallsBack(t *testing.T) {
	p := NewProvider(dbtest.Open(t), Options{}, nil)
	assert.Equal(t, Defaults(), p.Params(context.Background()))
}

func TestResolve(t *testing.T) {
	db := dbtest.Open(t)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"message":{"radius":70,"minutes":45}}`))
	}))
	defer srv.Close()
	seedURL(t, db, KeyParamsAPI, srv.URL)
	p := NewProvider(db, Options{}, nil)
	ctx := context.Background()

	radius, minutes := 5.0, 7

	got := p.Resolve(ctx, Override{Radius: &radius, Minutes: &minutes})
	assert.Equal(t, Params{Radius: 5, Minutes: 7}, got)
	assert.Equal(t, 0, calls, "complete override must not fetch")

	got = p.Resolve(ctx, Override{Radius: &radius})
	assert.Equal(t, Params{Radius: 5, Minutes: 45}, got)

	got = p.Resolve(ctx, Override{Minutes: &minutes})
	assert.Equal(t, Params{Radius: 70, Minutes: 7}, got)

	got = p.Resolve(ctx, Override{})
	assert.Equal(t, Params{Radius: 70, Minutes: 45}, got)
	assert.Equal(t, 3, calls)
}

func TestEndpointURL(t *testing.T) {
	db := dbtest.Open(t)
	p := NewProvider(db, Options{}, nil)
	ctx := context.Background()

	_, err := p.EndpointURL(ctx, KeyNotificationAPI)
	assert.ErrorIs(t, err, apperr.ErrConfig)

	seedURL(t, db, KeyNotificationAPI, "  ")
	_, err = p.EndpointURL(ctx, KeyNotificationAPI)
	assert.ErrorIs(t, err, apperr.ErrConfig)

	require.NoError(t, db.Model(&models.APIConfig{}).
		Where(&models.APIConfig{Key: KeyNotificationAPI}).
		Update("url", "http://store.local/hook").Error)
	url, err := p.EndpointURL(ctx, KeyNotificationAPI)
	require.NoError(t, err)
	assert.Equal(t, "http://store.local/hook", url)
}
