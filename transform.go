package starschema

import (
	"reflect"
	"strconv"
	"time"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/transforms/filter"
)

func init() {
	for _, t := range []reflect.Type{
		reflect.TypeOf((*SongRecord)(nil)).Elem(),
		reflect.TypeOf((*LogRecord)(nil)).Elem(),
		reflect.TypeOf((*SongRow)(nil)).Elem(),
		reflect.TypeOf((*ArtistRow)(nil)).Elem(),
		reflect.TypeOf((*UserRow)(nil)).Elem(),
		reflect.TypeOf((*TimeRow)(nil)).Elem(),
		reflect.TypeOf((*SongplayRow)(nil)).Elem(),
		reflect.TypeOf((*timeFn)(nil)).Elem(),
		reflect.TypeOf((*songplayFn)(nil)).Elem(),
	} {
		beam.RegisterType(t)
	}
	beam.RegisterFunction(keyBySongID)
	beam.RegisterFunction(keyByArtistID)
	beam.RegisterFunction(earlierSong)
	beam.RegisterFunction(songRow)
	beam.RegisterFunction(artistRow)
	beam.RegisterFunction(isPlay)
	beam.RegisterFunction(userRow)
	beam.RegisterFunction(keyPlay)
	beam.RegisterFunction(keySong)
}

// Songs projects a PCollection<SongRecord> onto the songs table, one
// SongRow per song_id. The record with the lowest Seq for an id wins.
func Songs(s beam.Scope, recs beam.PCollection) beam.PCollection {
	s = s.Scope("Songs")
	first := beam.CombinePerKey(s, earlierSong, beam.ParDo(s, keyBySongID, recs))
	return beam.ParDo(s, songRow, first)
}

// Artists projects a PCollection<SongRecord> onto the artists table, one
// ArtistRow per artist_id. The record with the lowest Seq for an id wins.
func Artists(s beam.Scope, recs beam.PCollection) beam.PCollection {
	s = s.Scope("Artists")
	first := beam.CombinePerKey(s, earlierSong, beam.ParDo(s, keyByArtistID, recs))
	return beam.ParDo(s, artistRow, first)
}

func keyBySongID(r SongRecord) (string, SongRecord) { return r.SongID, r }

func keyByArtistID(r SongRecord) (string, SongRecord) { return r.ArtistID, r }

func earlierSong(a, b SongRecord) SongRecord {
	if b.Seq < a.Seq {
		return b
	}
	return a
}

func songRow(_ string, r SongRecord) SongRow {
	return SongRow{
		SongID:   r.SongID,
		Title:    r.Title,
		ArtistID: r.ArtistID,
		Year:     int32(r.Year),
		Duration: r.Duration,
	}
}

func artistRow(_ string, r SongRecord) ArtistRow {
	return ArtistRow{
		ArtistID:  r.ArtistID,
		Name:      r.ArtistName,
		Latitude:  r.ArtistLatitude,
		Longitude: r.ArtistLongitude,
		Location:  r.ArtistLocation,
	}
}

// Plays keeps only the log records which are play events. All of the event
// tables are derived from its result.
func Plays(s beam.Scope, recs beam.PCollection) beam.PCollection {
	return filter.Include(s.Scope("Plays"), recs, isPlay)
}

func isPlay(r LogRecord) bool { return r.IsPlay() }

// Users projects plays onto the users table. Rows are distinct as a whole,
// so a user whose level changed appears once per level.
func Users(s beam.Scope, plays beam.PCollection) beam.PCollection {
	s = s.Scope("Users")
	return filter.Distinct(s, beam.ParDo(s, userRow, plays))
}

func userRow(r LogRecord) UserRow {
	return UserRow{
		UserID:    r.UserID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Gender:    r.Gender,
		Level:     r.Level,
	}
}

// Times derives the distinct rows of the time table from the plays' ts.
func Times(s beam.Scope, plays beam.PCollection, loc *time.Location) beam.PCollection {
	s = s.Scope("Times")
	return filter.Distinct(s, beam.ParDo(s, &timeFn{Zone: zoneName(loc)}, plays))
}

func zoneName(loc *time.Location) string {
	if loc == nil {
		return "UTC"
	}
	return loc.String()
}

type timeFn struct {
	Zone string

	loc *time.Location
}

func (f *timeFn) Setup() error {
	var err error
	f.loc, err = time.LoadLocation(f.Zone)
	return err
}

func (f *timeFn) ProcessElement(r LogRecord) TimeRow {
	return SplitTimestamp(r.Ts, f.loc)
}

// songKey is the join key of a song: its exact title and duration.
func songKey(title string, duration float64) string {
	return strconv.FormatFloat(duration, 'g', -1, 64) + "/" + title
}

func keyPlay(r LogRecord, keyed func(string, LogRecord), unkeyed func(LogRecord)) {
	if r.Song == nil || r.Length == nil {
		unkeyed(r)
		return
	}
	keyed(songKey(*r.Song, *r.Length), r)
}

func keySong(r SongRow) (string, SongRow) { return songKey(r.Title, r.Duration), r }

// Songplays joins plays to songs on exact title and duration equality. When
// several songs share a title and duration the one with the lowest song_id
// is used, so each play yields at most one row before duplicates are
// removed. The second PCollection holds the plays which matched no song and
// so yield no row.
func Songplays(s beam.Scope, plays, songs beam.PCollection, loc *time.Location) (rows, unmatched beam.PCollection) {
	s = s.Scope("Songplays")
	keyed, unkeyed := beam.ParDo2(s, keyPlay, plays)
	joined := beam.CoGroupByKey(s, keyed, beam.ParDo(s, keySong, songs))
	matched, missed := beam.ParDo2(s, &songplayFn{Zone: zoneName(loc)}, joined)
	return filter.Distinct(s, matched), beam.Flatten(s, unkeyed, missed)
}

type songplayFn struct {
	Zone string

	loc *time.Location
}

func (f *songplayFn) Setup() error {
	var err error
	f.loc, err = time.LoadLocation(f.Zone)
	return err
}

func (f *songplayFn) ProcessElement(_ string, plays func(*LogRecord) bool, songs func(*SongRow) bool, emit func(SongplayRow), miss func(LogRecord)) {
	var song, cand SongRow
	found := false
	for songs(&cand) {
		if !found || cand.SongID < song.SongID {
			song, found = cand, true
		}
	}
	var r LogRecord
	for plays(&r) {
		if !found {
			miss(r)
			continue
		}
		emit(SongplayRow{
			StartTime: r.Ts,
			UserID:    r.UserID,
			Level:     r.Level,
			SongID:    song.SongID,
			ArtistID:  song.ArtistID,
			SessionID: r.SessionID,
			Location:  r.Location,
			UserAgent: r.UserAgent,
			Year:      int32(Year(r.Ts, f.loc)),
			Month:     int32(Month(r.Ts, f.loc)),
		})
	}
}
