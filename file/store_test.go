package file

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pilosa/starschema"
)

func mustFile(t *testing.T, root, key, contents string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("making dir: %v", err)
	}
	if err := ioutil.WriteFile(p, []byte(contents), 0644); err != nil {
		t.Fatalf("writing %s: %v", key, err)
	}
}

func TestList(t *testing.T) {
	d := t.TempDir()
	mustFile(t, d, "song_data/A/B/C/TRABCEI128F424C983.json", "{}")
	mustFile(t, d, "song_data/A/A/B/TRAABJL12903CDCF1A.json", "{}")
	mustFile(t, d, "log_data/2018-11-01-events.json", "")
	mustFile(t, d, "song_database.txt", "")

	s := NewStore(d)
	keys, err := s.List("song_data/")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	exp := []string{"song_data/A/A/B/TRAABJL12903CDCF1A.json", "song_data/A/B/C/TRABCEI128F424C983.json"}
	if !reflect.DeepEqual(keys, exp) {
		t.Fatalf("unexpected keys: %v", keys)
	}

	keys, err = s.List("song_da")
	if err != nil {
		t.Fatalf("listing partial prefix: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys for partial prefix, got %v", keys)
	}

	keys, err = s.List("nope/")
	if err != nil {
		t.Fatalf("listing missing dir: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected nothing, got %v", keys)
	}
}

func TestListMissingRoot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "not", "there"))
	keys, err := s.List("")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected nothing, got %v", keys)
	}
}

func TestPutOpenExistsRemove(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Put("t.parquet/year=2000/_SUCCESS", []byte("ok")); err != nil {
		t.Fatalf("putting: %v", err)
	}
	ok, err := s.Exists("t.parquet/year=2000/_SUCCESS")
	if err != nil || !ok {
		t.Fatalf("expected key to exist: %v, %v", ok, err)
	}

	r, err := s.Open("t.parquet/year=2000/_SUCCESS")
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	if r.Name() != "t.parquet/year=2000/_SUCCESS" {
		t.Fatalf("wrong name: %s", r.Name())
	}
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	r.Close()
	if string(buf) != "ok" {
		t.Fatalf("wrong contents: %s", buf)
	}

	if err := s.RemoveAll("t.parquet/"); err != nil {
		t.Fatalf("removing: %v", err)
	}
	ok, err = s.Exists("t.parquet/year=2000/_SUCCESS")
	if err != nil || ok {
		t.Fatalf("expected key to be gone: %v, %v", ok, err)
	}
	if err := s.RemoveAll("t.parquet/"); err != nil {
		t.Fatalf("removing twice: %v", err)
	}
	if err := s.RemoveAll(""); err == nil {
		t.Fatal("expected error removing root")
	}
}

func TestGlob(t *testing.T) {
	d := t.TempDir()
	mustFile(t, d, "song_data/A/B/C/one.json", "{}")
	mustFile(t, d, "song_data/A/B/two.json", "{}")
	mustFile(t, d, "song_data/A/B/C/D/three.json", "{}")
	mustFile(t, d, "song_data/A/B/C/four.txt", "")

	keys, err := starschema.Glob(NewStore(d), "song_data/*/*/*/*.json")
	if err != nil {
		t.Fatalf("globbing: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"song_data/A/B/C/one.json"}) {
		t.Fatalf("unexpected matches: %v", keys)
	}
}
