package starschema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decoding %s: %v", s, err)
	}
	return v
}

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string    { return &s }

func TestParseSong(t *testing.T) {
	rec, err := ParseSong(decode(t, `{"num_songs": 1, "artist_id": "ARJIE2Y1187B994AB7", "artist_latitude": 35.14968,
		"artist_longitude": -90.04892, "artist_location": "Memphis, TN", "artist_name": "Line Renaud",
		"song_id": "SOUPIRU12A6D4FA1E1", "title": "Der Kleine Dompfaff", "duration": 152.92036, "year": 0}`))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	exp := SongRecord{
		SongID:          "SOUPIRU12A6D4FA1E1",
		Title:           "Der Kleine Dompfaff",
		ArtistID:        "ARJIE2Y1187B994AB7",
		Year:            0,
		Duration:        152.92036,
		ArtistName:      "Line Renaud",
		ArtistLatitude:  fptr(35.14968),
		ArtistLongitude: fptr(-90.04892),
		ArtistLocation:  "Memphis, TN",
	}
	if diff := cmp.Diff(exp, rec); diff != "" {
		t.Fatalf("unexpected record (-want +got):\n%s", diff)
	}

	// strings where numbers are expected, and nulls
	rec, err = ParseSong(decode(t, `{"song_id": "S1", "year": "1999", "duration": "210.5", "artist_latitude": null, "artist_location": null}`))
	if err != nil {
		t.Fatalf("parsing coerced: %v", err)
	}
	if rec.Year != 1999 || rec.Duration != 210.5 || rec.ArtistLatitude != nil || rec.ArtistLocation != "" {
		t.Fatalf("unexpected coerced record: %+v", rec)
	}
}

func TestParseSongErrors(t *testing.T) {
	for _, in := range []string{
		`{"song_id": "S1", "year": 1999.5}`,
		`{"song_id": "S1", "duration": "long"}`,
		`{"song_id": {"nested": true}}`,
		`["S1"]`,
	} {
		if _, err := ParseSong(decode(t, in)); err == nil {
			t.Errorf("expected error parsing %s", in)
		}
	}
}

func TestParseLog(t *testing.T) {
	rec, err := ParseLog(decode(t, `{"artist":"Des'ree","auth":"Logged In","firstName":"Kaylee","gender":"F",
		"itemInSession":1,"lastName":"Summers","length":246.30812,"level":"free",
		"location":"Phoenix-Mesa-Scottsdale, AZ","method":"PUT","page":"NextSong","registration":1540344794796.0,
		"sessionId":139,"song":"You Gotta Be","status":200,"ts":1541106106796,
		"userAgent":"Mozilla/5.0","userId":"8"}`))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	exp := LogRecord{
		Page:      "NextSong",
		UserID:    "8",
		FirstName: "Kaylee",
		LastName:  "Summers",
		Gender:    "F",
		Level:     "free",
		Ts:        1541106106796,
		SessionID: 139,
		Location:  "Phoenix-Mesa-Scottsdale, AZ",
		UserAgent: "Mozilla/5.0",
		Song:      sptr("You Gotta Be"),
		Length:    fptr(246.30812),
		Artist:    "Des'ree",
	}
	if diff := cmp.Diff(exp, rec); diff != "" {
		t.Fatalf("unexpected record (-want +got):\n%s", diff)
	}
	if !rec.IsPlay() {
		t.Fatal("NextSong should be a play")
	}

	// numeric user ids are kept as their canonical string, nulls stay nil
	rec, err = ParseLog(decode(t, `{"page":"Home","userId":26,"ts":"1541106106796","song":null,"length":null}`))
	if err != nil {
		t.Fatalf("parsing coerced: %v", err)
	}
	if rec.UserID != "26" || rec.Ts != 1541106106796 || rec.Song != nil || rec.Length != nil || rec.IsPlay() {
		t.Fatalf("unexpected coerced record: %+v", rec)
	}
}

func TestParseLogMissingTs(t *testing.T) {
	for _, in := range []string{`{"page":"NextSong"}`, `{"page":"NextSong","ts":null}`} {
		_, err := ParseLog(decode(t, in))
		if errors.Cause(err) != ErrMissingField {
			t.Fatalf("expected missing field for %s, got %v", in, err)
		}
		if !strings.Contains(err.Error(), "'ts'") {
			t.Fatalf("error should name the field: %v", err)
		}
	}
	if _, err := ParseLog(decode(t, `{"page":"NextSong","ts":1.5}`)); err == nil {
		t.Fatal("expected error for fractional ts")
	}
}

func TestCoerce(t *testing.T) {
	if s, err := toString(float64(1541106106796)); err != nil || s != "1541106106796" {
		t.Fatalf("toString: %q, %v", s, err)
	}
	if s, err := toString(true); err != nil || s != "true" {
		t.Fatalf("toString bool: %q, %v", s, err)
	}
	if i, err := toInt64(json.Number("42")); err != nil || i != 42 {
		t.Fatalf("toInt64 number: %d, %v", i, err)
	}
	if _, err := toInt64("4x"); err == nil {
		t.Fatal("expected error for bad int string")
	}
	if i, err := toInt64(float64(1 << 53)); err != nil || i != 1<<53 {
		t.Fatalf("toInt64 2^53: %d, %v", i, err)
	}
	for _, f := range []float64{1 << 53 * 2, -(1 << 53 * 2), 1e19} {
		if i, err := toInt64(f); err == nil {
			t.Fatalf("expected error converting %v, got %d", f, i)
		}
	}
	if f, err := toFloat64(json.Number("2.5")); err != nil || f != 2.5 {
		t.Fatalf("toFloat64 number: %v, %v", f, err)
	}
	if _, err := toFloat64([]int{1}); err == nil {
		t.Fatal("expected error for slice")
	}
}

func TestParseSongYearRange(t *testing.T) {
	_, err := ParseSong(decode(t, `{"song_id": "S1", "year": 3000000000}`))
	if err == nil || !strings.Contains(err.Error(), "year") {
		t.Fatalf("expected out of range year to be rejected, got %v", err)
	}
}
