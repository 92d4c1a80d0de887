package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimezone(t *testing.T) {
	loc, err := ParseTimezone("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = ParseTimezone("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	loc, err = ParseTimezone("+05:30")
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	loc, err = ParseTimezone("-03:00")
	require.NoError(t, err)
	_, offset = time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, -3*3600, offset)

	for _, bad := range []string{"Mars/Olympus", "+25:00", "0530"} {
		_, err := ParseTimezone(bad)
		assert.Error(t, err, bad)
	}
}
