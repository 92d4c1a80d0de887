package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbw-site/geotrack/internal/models"
)

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-10":           "2024-03-10",
		" 2024/03/10 ":         "2024-03-10",
		"20240310":             "2024-03-10",
		"2024-03-10T08:15:00Z": "2024-03-10",
		"March 10, 2024":       "2024-03-10",
	}
	for in, want := range cases {
		got, err := ParseDate(in, time.UTC)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Format(models.DateLayout), in)
	}

	for _, bad := range []string{"not-a-date", "2024-13-45"} {
		_, err := ParseDate(bad, time.UTC)
		assert.Error(t, err, bad)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]string{
		"08:15:30":        "08:15:30",
		"08:15":           "08:15:00",
		"08:15:30.123456": "08:15:30",
		"3:04 PM":         "15:04:00",
		"3:04:05PM":       "15:04:05",
	}
	for in, want := range cases {
		got, err := ParseClock(in, time.UTC)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Format(models.ClockLayout), in)
	}

	for _, bad := range []string{"quarter past eight", "later"} {
		_, err := ParseClock(bad, time.UTC)
		assert.Error(t, err, bad)
	}
}

func TestDecodeBatchRejectsNonList(t *testing.T) {
	for _, payload := range []any{
		map[string]any{"user": "rep"},
		"hello",
		42,
		nil,
	} {
		_, err := decodeBatch(payload)
		assert.Error(t, err, "%v", payload)
	}

	items, err := decodeBatch([]any{map[string]any{"user": "rep"}})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCoordinateAcceptsNumericStrings(t *testing.T) {
	rp, err := decodeItem(0, []byte(`{"user":"rep","lat":"12.5","long":77.25}`))
	require.NoError(t, err)
	require.NotNil(t, rp.Lat)
	assert.Equal(t, 12.5, float64(*rp.Lat))
	assert.Equal(t, 77.25, float64(*rp.Long))

	_, err = decodeItem(0, []byte(`{"user":"rep","lat":"north","long":1}`))
	assert.Error(t, err)

	_, err = decodeItem(0, []byte(`[1,2]`))
	assert.Error(t, err)
}
