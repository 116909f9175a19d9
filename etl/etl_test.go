package etl_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pilosa/starschema"
	"github.com/pilosa/starschema/etl"
	"github.com/pilosa/starschema/file"
	"github.com/pilosa/starschema/mock"
	"github.com/pilosa/starschema/table"
	"github.com/pilosa/starschema/test"
	"github.com/pkg/errors"
)

const songS1 = `{"num_songs": 1, "artist_id": "AR1", "artist_latitude": null, "artist_longitude": null,
 "artist_location": "NY", "artist_name": "Artist A", "song_id": "S1", "title": "Song A",
 "duration": 210.0, "year": 2000}`

const playS1 = `{"artist":"Artist A","auth":"Logged In","firstName":"Jo","gender":"F","itemInSession":0,"lastName":"Doe","length":210.0,"level":"free","location":"NY","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":100,"song":"Song A","status":200,"ts":946684800000,"userAgent":"UA1","userId":"7"}`

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("making dir: %v", err)
		}
		if err := ioutil.WriteFile(p, []byte(contents), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func newMain(t *testing.T, files map[string]string) (*etl.Main, *mock.RecordingStatter, *file.Store) {
	t.Helper()
	in, out := t.TempDir(), t.TempDir()
	writeFiles(t, in, files)
	stats := &mock.RecordingStatter{}
	m := etl.NewMain()
	m.InputData = in
	m.OutputData = out
	m.Credentials = ""
	m.Concurrency = 2
	m.Logger = &mock.RecordingLogger{}
	m.Statter = stats
	return m, stats, file.NewStore(out)
}

func readTable[T any](t *testing.T, s starschema.Store, name string) []T {
	t.Helper()
	rows, err := table.Read[T](s, name)
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return rows
}

func TestRunSinglePlay(t *testing.T) {
	m, stats, out := newMain(t, map[string]string{
		"song_data/A/A/A/TRAAAAK128F9318786.json": songS1,
		"song_data/A/stray.json":                  songS1,
		"log_data/2000-01-01-events.json":         playS1 + "\n",
	})
	test.ErrNil(t, m.Run(), "running")

	songs := readTable[starschema.SongRow](t, out, starschema.SongsTable)
	if diff := cmp.Diff([]starschema.SongRow{{SongID: "S1", Title: "Song A", ArtistID: "AR1", Year: 2000, Duration: 210}}, songs); diff != "" {
		t.Fatalf("songs (-want +got):\n%s", diff)
	}
	artists := readTable[starschema.ArtistRow](t, out, starschema.ArtistsTable)
	if diff := cmp.Diff([]starschema.ArtistRow{{ArtistID: "AR1", Name: "Artist A", Location: "NY"}}, artists); diff != "" {
		t.Fatalf("artists (-want +got):\n%s", diff)
	}
	users := readTable[starschema.UserRow](t, out, starschema.UsersTable)
	if diff := cmp.Diff([]starschema.UserRow{{UserID: "7", FirstName: "Jo", LastName: "Doe", Gender: "F", Level: "free"}}, users); diff != "" {
		t.Fatalf("users (-want +got):\n%s", diff)
	}
	times := readTable[starschema.TimeRow](t, out, starschema.TimeTable)
	if diff := cmp.Diff([]starschema.TimeRow{{Timestamp: 946684800, Hour: 0, Day: 1, Month: 1, Year: 2000, Weekday: 5, Week: 52}}, times); diff != "" {
		t.Fatalf("time (-want +got):\n%s", diff)
	}
	plays := readTable[starschema.SongplayRow](t, out, starschema.SongplaysTable)
	exp := []starschema.SongplayRow{{
		StartTime: 946684800000,
		UserID:    "7",
		Level:     "free",
		SongID:    "S1",
		ArtistID:  "AR1",
		SessionID: 100,
		Location:  "NY",
		UserAgent: "UA1",
		Year:      2000,
		Month:     1,
	}}
	if diff := cmp.Diff(exp, plays); diff != "" {
		t.Fatalf("songplays (-want +got):\n%s", diff)
	}

	files, err := table.Files(out, starschema.SongsTable)
	test.ErrNil(t, err, "listing songs files")
	if len(files) != 1 || !strings.HasPrefix(files[0], "song_t.parquet/year=2000/artist_id=AR1/part-") {
		t.Fatalf("unexpected songs layout: %v", files)
	}
	files, err = table.Files(out, starschema.SongplaysTable)
	test.ErrNil(t, err, "listing songplays files")
	if len(files) != 1 || !strings.HasPrefix(files[0], "songplays_t.parquet/year=2000/month=1/part-") {
		t.Fatalf("unexpected songplays layout: %v", files)
	}

	// the stray file is not three levels below song_data
	test.MustBe(t, int64(2), stats.Get("objects.read"), "objects read")
	test.MustBe(t, int64(1), stats.Get("table.songplays_t.rows"), "songplays rows")
}

func TestRunFiltersAndSkips(t *testing.T) {
	pageView := `{"firstName":"Al","gender":"M","lastName":"Bee","length":null,"level":"paid","location":"LA","page":"Home","sessionId":5,"song":null,"ts":946684801000,"userAgent":"UA2","userId":"8"}`
	unmatched := `{"firstName":"Cy","gender":"F","lastName":"Dee","length":210.5,"level":"paid","location":"SF","page":"NextSong","sessionId":6,"song":"Song A","ts":1541105830796,"userAgent":"UA3","userId":"9"}`
	noTs := `{"firstName":"Ed","gender":"M","lastName":"Eff","level":"free","page":"NextSong","sessionId":7,"userId":"10"}`
	corrupt := `{"page": "NextSong", broken`

	m, stats, out := newMain(t, map[string]string{
		"song_data/A/A/A/TRAAAAK128F9318786.json": songS1,
		"log_data/2018-11-01-events.json":         strings.Join([]string{playS1, pageView, unmatched, noTs, corrupt}, "\n"),
	})
	test.ErrNil(t, m.Run(), "running")

	users := readTable[starschema.UserRow](t, out, starschema.UsersTable)
	expUsers := []starschema.UserRow{
		{UserID: "7", FirstName: "Jo", LastName: "Doe", Gender: "F", Level: "free"},
		{UserID: "9", FirstName: "Cy", LastName: "Dee", Gender: "F", Level: "paid"},
	}
	if diff := cmp.Diff(expUsers, users); diff != "" {
		t.Fatalf("users (-want +got):\n%s", diff)
	}
	times := readTable[starschema.TimeRow](t, out, starschema.TimeTable)
	expTimes := []starschema.TimeRow{
		{Timestamp: 946684800, Hour: 0, Day: 1, Month: 1, Year: 2000, Weekday: 5, Week: 52},
		{Timestamp: 1541105830, Hour: 20, Day: 1, Month: 11, Year: 2018, Weekday: 3, Week: 44},
	}
	if diff := cmp.Diff(expTimes, times); diff != "" {
		t.Fatalf("time (-want +got):\n%s", diff)
	}
	plays := readTable[starschema.SongplayRow](t, out, starschema.SongplaysTable)
	if len(plays) != 1 || plays[0].UserID != "7" {
		t.Fatalf("expected only user 7's play, got %+v", plays)
	}

	test.MustBe(t, int64(5), stats.Get("records.read"), "records read")
	test.MustBe(t, int64(1), stats.Get("records.malformed"), "malformed")
	test.MustBe(t, int64(1), stats.Get("objects.corrupt"), "corrupt")
	test.MustBe(t, int64(1), stats.Get("plays.filtered"), "filtered")
	test.MustBe(t, int64(1), stats.Get("plays.unmatched"), "unmatched")
}

func TestRunFirstSongWins(t *testing.T) {
	first := strings.Replace(songS1, `"Song A"`, `"First"`, 1)
	second := strings.Replace(songS1, `"Song A"`, `"Second"`, 1)
	m, _, out := newMain(t, map[string]string{
		"song_data/A/A/A/a.json": first,
		"song_data/A/A/B/b.json": second,
		"song_data/B/A/A/c.json": second,
	})
	m.Concurrency = 3
	test.ErrNil(t, m.Run(), "running")

	songs := readTable[starschema.SongRow](t, out, starschema.SongsTable)
	if len(songs) != 1 || songs[0].Title != "First" {
		t.Fatalf("expected the first song by key to win, got %+v", songs)
	}
	// nothing in log_data still yields empty tables
	users := readTable[starschema.UserRow](t, out, starschema.UsersTable)
	if len(users) != 0 {
		t.Fatalf("expected no users, got %+v", users)
	}
	plays := readTable[starschema.SongplayRow](t, out, starschema.SongplaysTable)
	if len(plays) != 0 {
		t.Fatalf("expected no songplays, got %+v", plays)
	}
}

func TestProcessLogDataNeedsSongs(t *testing.T) {
	m, _, _ := newMain(t, map[string]string{
		"log_data/2000-01-01-events.json": playS1,
	})
	test.ErrNil(t, m.Setup(), "setting up")
	defer m.Close()
	err := m.ProcessLogData()
	if errors.Cause(err) != starschema.ErrTableNotFound {
		t.Fatalf("expected missing songs table to be fatal, got %v", err)
	}
}

func TestSetupErrors(t *testing.T) {
	m, _, _ := newMain(t, nil)
	m.Credentials = filepath.Join(t.TempDir(), "dl.cfg")
	if err := m.Setup(); err == nil {
		t.Fatal("expected error for missing credentials file")
	}

	m, _, _ = newMain(t, nil)
	m.TimeZone = "Not/AZone"
	if err := m.Setup(); err == nil {
		t.Fatal("expected error for bad time zone")
	}

	m, _, _ = newMain(t, nil)
	m.Concurrency = 0
	if err := m.Setup(); err == nil {
		t.Fatal("expected error for zero concurrency")
	}
}

func TestOpenStore(t *testing.T) {
	s, err := etl.OpenStore("s3a://udacity-dend/")
	test.ErrNil(t, err, "opening s3 store")
	if got := s.(interface{ String() string }).String(); got != "s3://udacity-dend/" {
		t.Fatalf("unexpected s3 store: %s", got)
	}
	dir := t.TempDir()
	s, err = etl.OpenStore(dir)
	test.ErrNil(t, err, "opening file store")
	if _, ok := s.(*file.Store); !ok {
		t.Fatalf("expected a file store, got %T", s)
	}
}
