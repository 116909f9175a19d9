package etl

import (
	"io"
	"sync/atomic"

	"github.com/pilosa/starschema"
	"github.com/pilosa/starschema/json"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Input locations relative to the input root. '*' does not cross a '/'.
const (
	SongDataPattern = "song_data/*/*/*/*.json"
	LogDataPattern  = "log_data/*.json"
)

// countedObject counts the bytes read out of a stored object.
type countedObject struct {
	starschema.NamedReadCloser
	r io.Reader
}

func (c countedObject) Read(p []byte) (int, error) { return c.r.Read(p) }

// load decodes every JSON record in the input objects matching pattern and
// converts each with parse. Records parse rejects are skipped. An object
// which stops decoding part way contributes the records before the bad
// one, but an object which can't be read is fatal. The result is in key
// order however the objects were scheduled.
func load[T any](m *Main, pattern string, parse func(interface{}) (T, error)) ([]T, error) {
	keys, err := starschema.Glob(m.in, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "finding %s", pattern)
	}
	if len(keys) == 0 {
		m.log.Printf("no input matches %s", pattern)
		return nil, nil
	}
	position := make(map[string]int, len(keys))
	for i, key := range keys {
		position[key] = i
	}

	results := make([][]T, len(keys))
	var total uint64
	src := starschema.NewKeySource(m.in, keys)
	eg := errgroup.Group{}
	for c := 0; c < m.Concurrency && c < len(keys); c++ {
		eg.Go(func() error {
			for {
				obj, err := src.NextReader()
				if err == io.EOF {
					return nil
				} else if err != nil {
					return err
				}
				recs, err := loadObject(m, countedObject{obj, starschema.CountingReader{R: obj, Total: &total}}, parse)
				obj.Close()
				if err != nil {
					return errors.Wrapf(err, "reading %s", obj.Name())
				}
				results[position[obj.Name()]] = recs
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", pattern)
	}

	var all []T
	for _, recs := range results {
		all = append(all, recs...)
	}
	m.log.Printf("read %d records from %d objects (%v) matching %s", len(all), len(keys), starschema.Bytes(atomic.LoadUint64(&total)), pattern)
	return all, nil
}

func loadObject[T any](m *Main, obj starschema.NamedReadCloser, parse func(interface{}) (T, error)) ([]T, error) {
	src := json.NewNamedSource(obj)
	var recs []T
	for {
		data, err := src.Record()
		if err == io.EOF {
			break
		} else if serr, ok := err.(*json.SyntaxError); ok {
			m.log.Printf("abandoning rest of object: %v", serr)
			m.stats.Count("objects.corrupt", 1, 1)
			break
		} else if err != nil {
			return nil, err
		}
		m.stats.Count("records.read", 1, 1)
		rec, err := parse(data)
		if err != nil {
			m.log.Debugf("skipping record in %s: %v", obj.Name(), err)
			m.stats.Count("records.malformed", 1, 1)
			continue
		}
		recs = append(recs, rec)
	}
	m.stats.Count("objects.read", 1, 1)
	return recs, nil
}
