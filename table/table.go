// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package table writes and reads tables as directories of parquet files in a
// starschema.Store.
//
// A table named "t.parquet" partitioned by (year, month) is laid out the way
// Hive and Spark lay it out:
//
//	t.parquet/year=2018/month=11/part-00000-<job>.snappy.parquet
//	t.parquet/_SUCCESS
//
// Partition columns are also stored inside the data files, so a part file
// can be read on its own. _SUCCESS is written last; a table without it is
// treated as missing.
package table

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pilosa/starschema"
	"github.com/pkg/errors"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"golang.org/x/sync/errgroup"
)

const (
	// SuccessMarker is the key, relative to a table, written once every
	// part file is complete.
	SuccessMarker = "_SUCCESS"

	// DefaultPartition names the directory for empty partition values.
	DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

	partExt = ".snappy.parquet"
)

// Spec describes how rows of type T are stored.
type Spec[T any] struct {
	// Name is the table's location relative to the store root.
	Name string
	// PartitionBy names the partition columns, outermost first.
	PartitionBy []string
	// Partition returns the value of each PartitionBy column for a row.
	Partition func(T) []string
}

// Result describes a completed write.
type Result struct {
	Rows  int
	Files int
	Took  time.Duration
}

type writeConfig struct {
	concurrency int
	parallelism int64
	jobID       string
	log         starschema.Logger
}

// WriteOption is a functional option type for Write.
type WriteOption func(c *writeConfig)

// OptWriteConcurrency sets how many partitions are written at once.
func OptWriteConcurrency(n int) WriteOption {
	return func(c *writeConfig) {
		c.concurrency = n
	}
}

// OptWriteParallelism sets the number of goroutines each parquet writer uses
// to encode columns.
func OptWriteParallelism(n int64) WriteOption {
	return func(c *writeConfig) {
		c.parallelism = n
	}
}

// OptWriteJobID fixes the job id embedded in part file names. A random one
// is generated otherwise.
func OptWriteJobID(id string) WriteOption {
	return func(c *writeConfig) {
		c.jobID = id
	}
}

// OptWriteLogger sets the logger used to report each file written.
func OptWriteLogger(l starschema.Logger) WriteOption {
	return func(c *writeConfig) {
		c.log = l
	}
}

// Write replaces whatever is stored at spec.Name with rows. Rows are
// grouped into one part file per distinct partition; an unpartitioned
// table gets a single part file even if it has no rows.
func Write[T any](s starschema.Store, spec Spec[T], rows []T, opts ...WriteOption) (Result, error) {
	start := time.Now()
	c := &writeConfig{
		concurrency: 4,
		parallelism: 4,
		log:         starschema.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jobID == "" {
		c.jobID = uuid.New().String()
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	if len(spec.PartitionBy) > 0 && spec.Partition == nil {
		return Result{}, errors.Errorf("table %s: partitioned by %v without a Partition func", spec.Name, spec.PartitionBy)
	}

	if err := s.RemoveAll(spec.Name + "/"); err != nil {
		return Result{}, errors.Wrapf(err, "clearing %s", spec.Name)
	}

	dirs := []string{""}
	groups := map[string][]T{"": rows}
	if len(spec.PartitionBy) > 0 {
		var err error
		dirs, groups, err = partition(spec, rows)
		if err != nil {
			return Result{}, err
		}
		sort.Strings(dirs)
	}

	eg := errgroup.Group{}
	eg.SetLimit(c.concurrency)
	for i, dir := range dirs {
		key := path.Join(spec.Name, dir, fmt.Sprintf("part-%05d-%s%s", i, c.jobID, partExt))
		group := groups[dir]
		eg.Go(func() error {
			if err := writeFile(s, key, group, c.parallelism); err != nil {
				return errors.Wrapf(err, "writing %s", key)
			}
			c.log.Debugf("wrote %d rows to %s", len(group), key)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	if err := s.Put(path.Join(spec.Name, SuccessMarker), nil); err != nil {
		return Result{}, errors.Wrapf(err, "marking %s complete", spec.Name)
	}
	return Result{Rows: len(rows), Files: len(dirs), Took: time.Since(start)}, nil
}

// partition groups rows by the directory of their partition.
func partition[T any](spec Spec[T], rows []T) ([]string, map[string][]T, error) {
	var dirs []string
	groups := make(map[string][]T)
	for _, row := range rows {
		vals := spec.Partition(row)
		if len(vals) != len(spec.PartitionBy) {
			return nil, nil, errors.Errorf("table %s: got %d partition values for %d columns", spec.Name, len(vals), len(spec.PartitionBy))
		}
		dir := PartitionDir(spec.PartitionBy, vals)
		if _, ok := groups[dir]; !ok {
			dirs = append(dirs, dir)
		}
		groups[dir] = append(groups[dir], row)
	}
	return dirs, groups, nil
}

// PartitionDir returns the relative directory for a row with the given
// partition values, e.g. "year=2018/month=11".
func PartitionDir(cols, vals []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		v := vals[i]
		if v == "" {
			v = DefaultPartition
		} else {
			v = escapePathName(v)
		}
		parts[i] = escapePathName(col) + "=" + v
	}
	return strings.Join(parts, "/")
}

// UnescapePathName reverses the escaping applied to partition values.
func UnescapePathName(s string) (string, error) {
	return url.PathUnescape(s)
}

func escapePathName(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&sb, "%%%02X", c)
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	return strings.IndexByte("\"#%'*/:=?\\{[]^", c) >= 0
}

func writeFile[T any](s starschema.Store, key string, rows []T, np int64) (err error) {
	fw, err := s.ParquetWriter(key)
	if err != nil {
		return errors.Wrap(err, "opening")
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing")
		}
	}()
	pw, err := writer.NewParquetWriter(fw, new(T), np)
	if err != nil {
		return errors.Wrap(err, "getting parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for i, row := range rows {
		if err := pw.Write(row); err != nil {
			return errors.Wrapf(err, "writing row %d", i)
		}
	}
	return errors.Wrap(pw.WriteStop(), "finishing")
}

// Files returns the part files of a completely written table, sorted.
func Files(s starschema.Store, name string) ([]string, error) {
	ok, err := s.Exists(path.Join(name, SuccessMarker))
	if err != nil {
		return nil, errors.Wrapf(err, "checking %s", name)
	}
	if !ok {
		return nil, errors.Wrap(starschema.ErrTableNotFound, name)
	}
	keys, err := s.List(name + "/")
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", name)
	}
	files := keys[:0]
	for _, key := range keys {
		if strings.HasSuffix(key, ".parquet") && !strings.HasPrefix(path.Base(key), "_") && !strings.HasPrefix(path.Base(key), ".") {
			files = append(files, key)
		}
	}
	return files, nil
}

// Read returns every row of a completely written table. It fails with a
// cause of starschema.ErrTableNotFound if the table isn't there.
func Read[T any](s starschema.Store, name string) ([]T, error) {
	files, err := Files(s, name)
	if err != nil {
		return nil, err
	}
	var rows []T
	for _, key := range files {
		part, err := readFile[T](s, key)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", key)
		}
		rows = append(rows, part...)
	}
	return rows, nil
}

func readFile[T any](s starschema.Store, key string) ([]T, error) {
	fr, err := s.ParquetReader(key)
	if err != nil {
		return nil, errors.Wrap(err, "opening")
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(T), 4)
	if err != nil {
		return nil, errors.Wrap(err, "getting parquet reader")
	}
	defer pr.ReadStop()
	n := int(pr.GetNumRows())
	if n == 0 {
		return nil, nil
	}
	rows := make([]T, n)
	if err := pr.Read(&rows); err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	return rows, nil
}
