package starschema

// Table locations relative to the output root.
const (
	SongsTable     = "song_t.parquet"
	ArtistsTable   = "artist_t.parquet"
	UsersTable     = "user_t.parquet"
	TimeTable      = "time_t.parquet"
	SongplaysTable = "songplays_t.parquet"
)

// SongRow is a row of the songs dimension table.
type SongRow struct {
	SongID   string  `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title    string  `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID string  `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year     int32   `parquet:"name=year, type=INT32"`
	Duration float64 `parquet:"name=duration, type=DOUBLE"`
}

// ArtistRow is a row of the artists dimension table. Coordinates are often
// unknown.
type ArtistRow struct {
	ArtistID  string   `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name      string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Latitude  *float64 `parquet:"name=latitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Longitude *float64 `parquet:"name=longitude, type=DOUBLE, repetitiontype=OPTIONAL"`
	Location  string   `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// UserRow is a row of the users dimension table.
type UserRow struct {
	UserID    string `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	FirstName string `parquet:"name=first_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName  string `parquet:"name=last_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Gender    string `parquet:"name=gender, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// TimeRow is a row of the time dimension table.
type TimeRow struct {
	Timestamp int64 `parquet:"name=timestamp, type=INT64"`
	Hour      int32 `parquet:"name=hour, type=INT32"`
	Day       int32 `parquet:"name=day, type=INT32"`
	Month     int32 `parquet:"name=month, type=INT32"`
	Year      int32 `parquet:"name=year, type=INT32"`
	Weekday   int32 `parquet:"name=weekday, type=INT32"`
	Week      int32 `parquet:"name=week, type=INT32"`
}

// SongplayRow is a row of the songplays fact table. Year and Month are
// derived from StartTime and used to partition the table.
type SongplayRow struct {
	StartTime int64  `parquet:"name=start_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	UserID    string `parquet:"name=user_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level     string `parquet:"name=level, type=BYTE_ARRAY, convertedtype=UTF8"`
	SongID    string `parquet:"name=song_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ArtistID  string `parquet:"name=artist_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	SessionID int64  `parquet:"name=session_id, type=INT64"`
	Location  string `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	UserAgent string `parquet:"name=user_agent, type=BYTE_ARRAY, convertedtype=UTF8"`
	Year      int32  `parquet:"name=year, type=INT32"`
	Month     int32  `parquet:"name=month, type=INT32"`
}

// The Less methods give each table a fixed row order, so that the files
// written do not depend on how a pipeline was scheduled.

func (r SongRow) Less(o SongRow) bool { return r.SongID < o.SongID }

func (r ArtistRow) Less(o ArtistRow) bool { return r.ArtistID < o.ArtistID }

func (r UserRow) Less(o UserRow) bool {
	if r.UserID != o.UserID {
		return r.UserID < o.UserID
	}
	if r.Level != o.Level {
		return r.Level < o.Level
	}
	if r.FirstName != o.FirstName {
		return r.FirstName < o.FirstName
	}
	if r.LastName != o.LastName {
		return r.LastName < o.LastName
	}
	return r.Gender < o.Gender
}

func (r TimeRow) Less(o TimeRow) bool { return r.Timestamp < o.Timestamp }

func (r SongplayRow) Less(o SongplayRow) bool {
	switch {
	case r.StartTime != o.StartTime:
		return r.StartTime < o.StartTime
	case r.UserID != o.UserID:
		return r.UserID < o.UserID
	case r.SessionID != o.SessionID:
		return r.SessionID < o.SessionID
	case r.SongID != o.SongID:
		return r.SongID < o.SongID
	case r.Level != o.Level:
		return r.Level < o.Level
	case r.Location != o.Location:
		return r.Location < o.Location
	default:
		return r.UserAgent < o.UserAgent
	}
}
