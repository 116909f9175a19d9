package starschema

import (
	"io"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go/source"
)

// Source is the interface for getting raw data one record at a time.
// Implementations of Source should be thread safe.
type Source interface {
	Record() (interface{}, error)
}

// NamedReadCloser is a reader over a single stored object which knows the key
// it was opened from.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
	Meta() map[string]interface{}
}

// RawSource hands out readers over a sequence of objects, returning io.EOF
// once they are exhausted.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}

// Store is a key-path-addressed object store. Keys are slash separated and
// relative to the root the store was opened at.
type Store interface {
	// List returns every key which begins with prefix, sorted. A prefix
	// which matches nothing is not an error.
	List(prefix string) ([]string, error)
	Open(key string) (NamedReadCloser, error)
	Exists(key string) (bool, error)
	Put(key string, data []byte) error
	// RemoveAll deletes every key beginning with prefix.
	RemoveAll(prefix string) error

	ParquetWriter(key string) (source.ParquetFile, error)
	ParquetReader(key string) (source.ParquetFile, error)
}

// Glob returns the keys in s which match pattern, sorted. Pattern syntax is
// that of path.Match, so '*' never crosses a '/'.
func Glob(s Store, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, errors.Wrapf(err, "bad pattern '%s'", pattern)
	}
	prefix := pattern
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		prefix = pattern[:strings.LastIndex(pattern[:i], "/")+1]
	}
	keys, err := s.List(prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "listing '%s'", prefix)
	}
	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		if ok, _ := path.Match(pattern, key); ok {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)
	return matched, nil
}

// KeySource is a RawSource over a fixed list of keys in a Store.
type KeySource struct {
	store Store
	keys  []string
	idx   *uint64
}

// NewKeySource returns a RawSource which opens each of keys in turn.
func NewKeySource(s Store, keys []string) *KeySource {
	var idx uint64
	return &KeySource{
		store: s,
		keys:  keys,
		idx:   &idx,
	}
}

// NextReader implements RawSource.
func (k *KeySource) NextReader() (NamedReadCloser, error) {
	idx := atomic.AddUint64(k.idx, 1) - 1
	if int(idx) >= len(k.keys) {
		return nil, io.EOF
	}
	r, err := k.store.Open(k.keys[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", k.keys[idx])
	}
	return r, nil
}
