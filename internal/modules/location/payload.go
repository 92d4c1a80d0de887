package location

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
	"github.com/sbw-site/geotrack/internal/pkg/geo"
)

// RawPing is one element of an update_location batch as sent by clients.
type RawPing struct {
	User string          `json:"user"`
	Lat  *coordinate     `json:"lat"`
	Long *coordinate     `json:"long"`
	Date json.RawMessage `json:"date"`
	Time json.RawMessage `json:"time"`
}

// coordinate accepts a JSON number or a numeric string.
type coordinate float64

func (c *coordinate) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*c = coordinate(v)
	return nil
}

// decodeBatch splits payload into its elements. Anything other than a list
// is rejected before any element is looked at.
func decodeBatch(payload any) ([]json.RawMessage, error) {
	var raw []byte
	switch v := payload.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, apperr.Validation("Expected a list of data objects")
		}
		raw = b
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, apperr.Validation("Expected a list of data objects")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperr.Validation("Expected a list of data objects")
	}
	return items, nil
}

func decodeItem(i int, item json.RawMessage) (RawPing, error) {
	var rp RawPing
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return rp, apperr.Validation("item %d is not an object", i)
	}
	if err := json.Unmarshal(trimmed, &rp); err != nil {
		return rp, apperr.Validation("item %d: invalid field: %v", i, err)
	}
	return rp, nil
}

// toModel validates rp and resolves its date and time against arrival.
// Missing date/time fall back to arrival; unparseable ones are errors.
func (rp RawPing) toModel(sid string, arrival time.Time) (models.LocationData, error) {
	user := strings.TrimSpace(rp.User)
	if user == "" {
		return models.LocationData{}, apperr.Validation("user is required")
	}
	if rp.Lat == nil || rp.Long == nil {
		return models.LocationData{}, apperr.Validation("lat and long are required")
	}
	coord := geo.Coord{Lat: float64(*rp.Lat), Lng: float64(*rp.Long)}
	if !coord.Valid() {
		return models.LocationData{}, apperr.Validation("coordinates out of range: %v, %v", coord.Lat, coord.Lng)
	}

	date, err := resolveField(rp.Date, arrival, ParseDate, models.DateLayout)
	if err != nil {
		return models.LocationData{}, apperr.Parse(err, "Parse date error")
	}
	clock, err := resolveField(rp.Time, arrival, ParseClock, models.ClockLayout)
	if err != nil {
		return models.LocationData{}, apperr.Parse(err, "Parse time error")
	}

	row := models.LocationData{
		UserID:    user,
		Latitude:  coord.Lat,
		Longitude: coord.Lng,
		Timestamp: arrival,
		Date:      date,
		Time:      clock,
	}
	if sid != "" {
		row.SocketID = &sid
	}
	return row, nil
}

func resolveField(raw json.RawMessage, arrival time.Time, parse func(string, *time.Location) (time.Time, error), layout string) (string, error) {
	s, present, err := optionalString(raw)
	if err != nil {
		return "", err
	}
	if !present {
		return arrival.Format(layout), nil
	}
	t, err := parse(s, arrival.Location())
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

// optionalString reports present=false for absent, null or empty values.
// Non-string JSON values are an error.
func optionalString(raw json.RawMessage) (s string, present bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", false, nil
	}
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false, err
	}
	s = strings.TrimSpace(s)
	return s, s != "", nil
}

var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"20060102",
}

// ParseDate parses a calendar date in loc (time.Local when nil). ISO forms are tried first,
// then any format dateparse understands; full timestamps keep their date.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

var clockLayouts = []string{
	models.ClockLayout,
	"15:04",
	"15:04:05.999999999",
	"3:04 PM",
	"3:04:05 PM",
	"3:04PM",
	"3:04:05PM",
}

// ParseClock parses a time of day. Full timestamps are accepted and reduced
// to their clock.
func ParseClock(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
