package starschema

import (
	"math"

	"github.com/pkg/errors"
)

// SongRecord is one object of song metadata.
type SongRecord struct {
	SongID          string
	Title           string
	ArtistID        string
	Year            int64
	Duration        float64
	ArtistName      string
	ArtistLatitude  *float64
	ArtistLongitude *float64
	ArtistLocation  string

	// Seq is the record's position in the input, in key order. Where
	// several records describe one song or artist the lowest Seq wins.
	Seq int64
}

// LogRecord is one line of user activity. Song and Length are only set on
// play events.
type LogRecord struct {
	Page      string
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Level     string
	Ts        int64 // epoch milliseconds
	SessionID int64
	Location  string
	UserAgent string
	Song      *string
	Length    *float64
	Artist    string
}

// PageNextSong is the page value of a log record which represents a play.
const PageNextSong = "NextSong"

// IsPlay reports whether the record is a play event.
func (r LogRecord) IsPlay() bool { return r.Page == PageNextSong }

// ParseSong converts a decoded song metadata object into a SongRecord.
func ParseSong(data interface{}) (SongRecord, error) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return SongRecord{}, errors.Errorf("song record must be an object, got %T", data)
	}
	f := &fields{m: m}
	rec := SongRecord{
		SongID:          f.str("song_id"),
		Title:           f.str("title"),
		ArtistID:        f.str("artist_id"),
		Year:            f.integer("year"),
		Duration:        f.float("duration"),
		ArtistName:      f.str("artist_name"),
		ArtistLatitude:  f.floatPtr("artist_latitude"),
		ArtistLongitude: f.floatPtr("artist_longitude"),
		ArtistLocation:  f.str("artist_location"),
	}
	if f.err == nil && (rec.Year < math.MinInt32 || rec.Year > math.MaxInt32) {
		f.fail("year", errors.Errorf("%d out of range", rec.Year))
	}
	if f.err != nil {
		return SongRecord{}, errors.Wrap(f.err, "parsing song")
	}
	return rec, nil
}

// ParseLog converts a decoded log object into a LogRecord. Every derived
// table depends on ts, so a record without one is rejected.
func ParseLog(data interface{}) (LogRecord, error) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return LogRecord{}, errors.Errorf("log record must be an object, got %T", data)
	}
	f := &fields{m: m}
	rec := LogRecord{
		Page:      f.str("page"),
		UserID:    f.str("userId"),
		FirstName: f.str("firstName"),
		LastName:  f.str("lastName"),
		Gender:    f.str("gender"),
		Level:     f.str("level"),
		Ts:        f.requiredInteger("ts"),
		SessionID: f.integer("sessionId"),
		Location:  f.str("location"),
		UserAgent: f.str("userAgent"),
		Song:      f.strPtr("song"),
		Length:    f.floatPtr("length"),
		Artist:    f.str("artist"),
	}
	if f.err != nil {
		return LogRecord{}, errors.Wrap(f.err, "parsing log")
	}
	return rec, nil
}
