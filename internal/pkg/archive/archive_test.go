package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbw-site/geotrack/internal/config"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, "movement/2024/03/10/07/rep.json", ObjectKey("", "rep.json", at))
	assert.Equal(t, "reports/2024-03/rep.json", ObjectKey("/reports//{Y}-{m}/{filename}", "rep.json", at))
	assert.Equal(t, "rep.json", ObjectKey("/", "rep.json", at))
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(config.ArchiveConfig{})
	assert.Error(t, err)
}

func TestS3PutUsesPathStyleEndpoint(t *testing.T) {
	var method, path, contentType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := NewS3(config.ArchiveConfig{
		Endpoint:        srv.URL,
		Bucket:          "tracks",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	err = a.Put(context.Background(), "/movement/2024/03/10/07/rep.json", []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/tracks/movement/2024/03/10/07/rep.json", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, `{"ok":true}`, string(body))
}
