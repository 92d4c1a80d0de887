package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRollsDaily(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	day := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day }
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	w.now = func() time.Time { return day.Add(2 * time.Minute) }
	_, err = w.Write([]byte("third\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "stdout_2024-03-10.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))

	files, err := List(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "stdout_2024-03-11.log", files[0].Filename)
	assert.Equal(t, int64(len("third\n")), files[0].Size)
}

func TestListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "stdout_old.log"), 0o755))

	files, err := List(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestResolveDir(t *testing.T) {
	t.Setenv(EnvLogDir, "")
	assert.Equal(t, "/var/log/geotrack", ResolveDir(" /var/log/geotrack "))
	assert.Equal(t, filepath.Join(".", "logs"), ResolveDir(""))

	t.Setenv(EnvLogDir, "/tmp/override")
	assert.Equal(t, "/tmp/override", ResolveDir("/var/log/geotrack"))
}

func TestNewZapLoggerWritesFile(t *testing.T) {
	t.Setenv(EnvLogDir, "")
	dir := t.TempDir()
	logger, err := NewZapLogger(dir, false)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("visible")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, DailyFilename(time.Now())))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"visible"`)
	assert.NotContains(t, string(data), "hidden")
}
