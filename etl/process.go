package etl

import (
	"context"
	"strconv"
	"strings"

	"github.com/pilosa/starschema"
	"github.com/pilosa/starschema/engine"
	"github.com/pilosa/starschema/table"
	"github.com/pkg/errors"
)

func itoa[N int32 | int64](n N) string { return strconv.FormatInt(int64(n), 10) }

var (
	songsSpec = table.Spec[starschema.SongRow]{
		Name:        starschema.SongsTable,
		PartitionBy: []string{"year", "artist_id"},
		Partition: func(r starschema.SongRow) []string {
			return []string{itoa(r.Year), r.ArtistID}
		},
	}
	artistsSpec = table.Spec[starschema.ArtistRow]{Name: starschema.ArtistsTable}
	usersSpec   = table.Spec[starschema.UserRow]{Name: starschema.UsersTable}
	timeSpec    = table.Spec[starschema.TimeRow]{
		Name:        starschema.TimeTable,
		PartitionBy: []string{"year", "month"},
		Partition: func(r starschema.TimeRow) []string {
			return []string{itoa(r.Year), itoa(r.Month)}
		},
	}
	songplaysSpec = table.Spec[starschema.SongplayRow]{
		Name:        starschema.SongplaysTable,
		PartitionBy: []string{"year", "month"},
		Partition: func(r starschema.SongplayRow) []string {
			return []string{itoa(r.Year), itoa(r.Month)}
		},
	}
)

// ProcessSongData writes the songs and artists tables from the song data.
func (m *Main) ProcessSongData() error {
	recs, err := load(m, SongDataPattern, starschema.ParseSong)
	if err != nil {
		return errors.Wrap(err, "loading song data")
	}
	for i := range recs {
		recs[i].Seq = int64(i)
	}

	p := m.engine.NewPipeline()
	in := engine.Create(p, recs)
	songs := engine.Collect(p, starschema.Songs(p.Scope(), in), starschema.SongRow.Less)
	artists := engine.Collect(p, starschema.Artists(p.Scope(), in), starschema.ArtistRow.Less)
	if err := m.engine.Run(context.Background(), p); err != nil {
		return errors.Wrap(err, "deriving songs and artists")
	}

	if err := writeTable(m, songsSpec, songs.Rows()); err != nil {
		return err
	}
	return writeTable(m, artistsSpec, artists.Rows())
}

// ProcessLogData writes the users, time and songplays tables from the play
// events in the log data. songplays is joined against the songs table as
// stored, which must already exist; nothing is written if it doesn't.
func (m *Main) ProcessLogData() error {
	recs, err := load(m, LogDataPattern, starschema.ParseLog)
	if err != nil {
		return errors.Wrap(err, "loading log data")
	}
	stored, err := table.Read[starschema.SongRow](m.out, starschema.SongsTable)
	if err != nil {
		return errors.Wrap(err, "reading songs table")
	}

	p := m.engine.NewPipeline()
	s := p.Scope()
	plays := starschema.Plays(s, engine.Create(p, recs))
	nplays := engine.Count(p, plays)
	users := engine.Collect(p, starschema.Users(s, plays), starschema.UserRow.Less)
	times := engine.Collect(p, starschema.Times(s, plays, m.loc), starschema.TimeRow.Less)
	rows, unmatched := starschema.Songplays(s, plays, engine.Create(p, stored), m.loc)
	songplays := engine.Collect(p, rows, starschema.SongplayRow.Less)
	nunmatched := engine.Count(p, unmatched)
	if err := m.engine.Run(context.Background(), p); err != nil {
		return errors.Wrap(err, "deriving users, time and songplays")
	}

	m.stats.Count("plays.filtered", int64(len(recs))-nplays.Value(), 1)
	m.log.Debugf("%d of %d log records are plays", nplays.Value(), len(recs))
	m.stats.Count("plays.unmatched", nunmatched.Value(), 1)
	if n := nunmatched.Value(); n > 0 {
		m.log.Debugf("%d plays match no song", n)
	}

	if err := writeTable(m, usersSpec, users.Rows()); err != nil {
		return err
	}
	if err := writeTable(m, timeSpec, times.Rows()); err != nil {
		return err
	}
	return writeTable(m, songplaysSpec, songplays.Rows())
}

func writeTable[T any](m *Main, spec table.Spec[T], rows []T) error {
	res, err := table.Write(m.out, spec, rows,
		table.OptWriteConcurrency(m.Concurrency),
		table.OptWriteParallelism(m.WriteParallelism),
		table.OptWriteLogger(m.log),
	)
	if err != nil {
		return errors.Wrapf(err, "writing %s", spec.Name)
	}
	stat := "table." + strings.TrimSuffix(spec.Name, ".parquet")
	m.stats.Count(stat+".rows", int64(res.Rows), 1)
	m.stats.Count(stat+".files", int64(res.Files), 1)
	m.stats.Timing(stat+".write", res.Took, 1)
	m.log.Printf("wrote %d rows in %d files to %s in %v", res.Rows, res.Files, spec.Name, res.Took)
	return nil
}
