// Package file implements starschema.Store over a local directory.
package file

import (
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pilosa/starschema"
	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
)

// Store is a starschema.Store rooted at a local directory. Keys are slash
// separated paths relative to the root.
type Store struct {
	root string
}

// NewStore returns a Store rooted at root. The directory need not exist yet;
// it is created on the first write.
func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}


func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// List implements starschema.Store.
func (s *Store) List(prefix string) ([]string, error) {
	// walk only the deepest directory the prefix names completely
	dir := s.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = s.path(prefix[:i])
	}
	var keys []string
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return errors.Wrapf(err, "relativizing %s", p)
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", dir)
	}
	sort.Strings(keys)
	return keys, nil
}

type metaFile struct {
	*os.File
	key string
}

func (m *metaFile) Name() string { return m.key }

func (m *metaFile) Meta() map[string]interface{} { return nil }

// Open implements starschema.Store.
func (s *Store) Open(key string) (starschema.NamedReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", key)
	}
	return &metaFile{File: f, key: key}, nil
}

// Exists implements starschema.Store.
func (s *Store) Exists(key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "statting %s", key)
	}
	return true, nil
}

// Put implements starschema.Store.
func (s *Store) Put(key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrapf(err, "making directory for %s", key)
	}
	return errors.Wrapf(ioutil.WriteFile(p, data, 0644), "writing %s", key)
}

// RemoveAll implements starschema.Store. A prefix ending in '/' removes a
// whole directory.
func (s *Store) RemoveAll(prefix string) error {
	if prefix == "" || prefix == "/" {
		return errors.New("refusing to remove the store root")
	}
	if strings.HasSuffix(prefix, "/") {
		return errors.Wrapf(os.RemoveAll(s.path(prefix)), "removing %s", prefix)
	}
	keys, err := s.List(prefix)
	if err != nil {
		return errors.Wrap(err, "listing")
	}
	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil {
			return errors.Wrapf(err, "removing %s", key)
		}
	}
	return nil
}

// ParquetWriter implements starschema.Store.
func (s *Store) ParquetWriter(key string) (source.ParquetFile, error) {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, errors.Wrapf(err, "making directory for %s", key)
	}
	fw, err := local.NewLocalFileWriter(p)
	return fw, errors.Wrapf(err, "creating %s", key)
}

// ParquetReader implements starschema.Store.
func (s *Store) ParquetReader(key string) (source.ParquetFile, error) {
	fr, err := local.NewLocalFileReader(s.path(key))
	return fr, errors.Wrapf(err, "opening %s", key)
}

// String returns the root as a slash separated path.
func (s *Store) String() string { return path.Clean(filepath.ToSlash(s.root)) + "/" }
