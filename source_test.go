package starschema_test

import (
	"bytes"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"testing"

	"github.com/pilosa/starschema"
	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go/source"
)

// memStore is a starschema.Store over a map, without parquet support.
type memStore map[string][]byte

type memObject struct {
	*bytes.Reader
	name string
}

func (o memObject) Close() error                 { return nil }
func (o memObject) Name() string                 { return o.name }
func (o memObject) Meta() map[string]interface{} { return nil }

func (s memStore) List(prefix string) ([]string, error) {
	var keys []string
	for k := range s {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s memStore) Open(key string) (starschema.NamedReadCloser, error) {
	data, ok := s[key]
	if !ok {
		return nil, errors.Errorf("no such key %s", key)
	}
	return memObject{Reader: bytes.NewReader(data), name: key}, nil
}

func (s memStore) Exists(key string) (bool, error) {
	_, ok := s[key]
	return ok, nil
}

func (s memStore) Put(key string, data []byte) error {
	s[key] = data
	return nil
}

func (s memStore) RemoveAll(prefix string) error {
	for k := range s {
		if strings.HasPrefix(k, prefix) {
			delete(s, k)
		}
	}
	return nil
}

func (s memStore) ParquetWriter(key string) (source.ParquetFile, error) {
	return nil, errors.New("unsupported")
}

func (s memStore) ParquetReader(key string) (source.ParquetFile, error) {
	return nil, errors.New("unsupported")
}

func newMemStore(keys ...string) memStore {
	s := memStore{}
	for _, k := range keys {
		s[k] = []byte(k)
	}
	return s
}

func TestGlob(t *testing.T) {
	s := newMemStore(
		"song_data/A/B/C/TRABCEI128F424C983.json",
		"song_data/A/A/B/TRAABJL12903CDCF1A.json",
		"song_data/A/A/TRAAAAW128F429D538.json",
		"song_data/A/A/B/C/TRAABCL128F4286650.json",
		"song_data/A/A/B/notes.txt",
		"log_data/2018-11-01-events.json",
		"log_data/2018-11-02-events.json",
		"log_data/nested/2018-11-03-events.json",
	)
	tests := []struct {
		pattern string
		exp     []string
	}{
		{
			pattern: "song_data/*/*/*/*.json",
			exp:     []string{"song_data/A/A/B/TRAABJL12903CDCF1A.json", "song_data/A/B/C/TRABCEI128F424C983.json"},
		},
		{
			pattern: "log_data/*.json",
			exp:     []string{"log_data/2018-11-01-events.json", "log_data/2018-11-02-events.json"},
		},
		{
			pattern: "log_data/2018-11-0[2-9]-events.json",
			exp:     []string{"log_data/2018-11-02-events.json"},
		},
		{
			pattern: "log_data/2018-11-01-events.json",
			exp:     []string{"log_data/2018-11-01-events.json"},
		},
		{
			pattern: "missing/*.json",
			exp:     []string{},
		},
	}
	for _, tst := range tests {
		got, err := starschema.Glob(s, tst.pattern)
		if err != nil {
			t.Fatalf("globbing %s: %v", tst.pattern, err)
		}
		if len(got) != len(tst.exp) {
			t.Fatalf("%s: expected %v, got %v", tst.pattern, tst.exp, got)
		}
		for i := range got {
			if got[i] != tst.exp[i] {
				t.Fatalf("%s: expected %v, got %v", tst.pattern, tst.exp, got)
			}
		}
	}

	if _, err := starschema.Glob(s, "log_data/[.json"); err == nil {
		t.Fatal("expected error for bad pattern")
	}
}

func TestKeySource(t *testing.T) {
	s := newMemStore("a", "b")
	ks := starschema.NewKeySource(s, []string{"a", "b"})
	for _, exp := range []string{"a", "b"} {
		r, err := ks.NextReader()
		if err != nil {
			t.Fatalf("getting reader: %v", err)
		}
		if r.Name() != exp {
			t.Fatalf("expected %s, got %s", exp, r.Name())
		}
		data, _ := ioutil.ReadAll(r)
		if string(data) != exp {
			t.Fatalf("wrong contents for %s: %s", exp, data)
		}
	}
	if _, err := ks.NextReader(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}

	ks = starschema.NewKeySource(s, []string{"gone"})
	if _, err := ks.NextReader(); err == nil || err == io.EOF {
		t.Fatalf("expected open error, got %v", err)
	}
}
