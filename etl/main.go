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

// Package etl runs the star schema job: song data becomes the songs and
// artists tables, then log data becomes the users, time and songplays
// tables.
package etl

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/pilosa/starschema"
	"github.com/pilosa/starschema/aws/s3"
	"github.com/pilosa/starschema/engine"
	"github.com/pilosa/starschema/file"
	"github.com/pilosa/starschema/termstat"
	"github.com/pkg/errors"
)

// Main holds all config for a run.
type Main struct {
	InputData        string `help:"Root holding song_data and log_data. A directory or an s3:// URL."`
	OutputData       string `help:"Root the tables are written under. A directory or an s3:// URL."`
	Credentials      string `help:"Key-value file with an [AWS] section holding AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY. Empty means use the default AWS credential chain."`
	Region           string `help:"AWS region of the buckets."`
	Endpoint         string `help:"S3 compatible endpoint to use instead of AWS."`
	ACL              string `flag:"acl" help:"Canned ACL given to files written to S3."`
	TimeZone         string `help:"Time zone timestamps are broken down in."`
	Concurrency      int    `help:"Number of input objects read, and partitions written, at once."`
	WriteParallelism int64  `help:"Number of goroutines each parquet file is encoded with."`
	LogPath          string `help:"Log file to write to. Empty means stderr."`
	Verbose          bool   `help:"Enable verbose logging."`
	Stats            bool   `help:"Print counters to the terminal while running."`

	// Logger and Statter, if set, replace the ones chosen by LogPath,
	// Verbose and Stats.
	Logger  starschema.Logger  `flag:"-"`
	Statter starschema.Statter `flag:"-"`

	log     starschema.Logger
	stats   starschema.Statter
	engine  *engine.Engine
	loc     *time.Location
	in      starschema.Store
	out     starschema.Store
	closers []io.Closer
}

// NewMain returns a Main with the locations of the standard job.
func NewMain() *Main {
	return &Main{
		InputData:        "./data/",
		OutputData:       "./test2/",
		Credentials:      "dl.cfg",
		Region:           "us-west-2",
		ACL:              "bucket-owner-full-control",
		TimeZone:         "UTC",
		Concurrency:      8,
		WriteParallelism: 4,
	}
}

// Run processes song data and then log data. The log data step reads back
// the songs table, so nothing of it starts until the song data step has
// completely written its output.
func (m *Main) Run() error {
	start := time.Now()
	if err := m.Setup(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	defer m.Close()

	if err := m.ProcessSongData(); err != nil {
		return errors.Wrap(err, "processing song data")
	}
	if err := m.ProcessLogData(); err != nil {
		return errors.Wrap(err, "processing log data")
	}
	m.log.Printf("done in %v", time.Since(start))
	return nil
}

func (m *Main) validate() error {
	if m.InputData == "" {
		return errors.New("input-data is required")
	}
	if m.OutputData == "" {
		return errors.New("output-data is required")
	}
	if m.Concurrency < 1 {
		return errors.Errorf("concurrency must be positive, got %d", m.Concurrency)
	}
	if m.WriteParallelism < 1 {
		return errors.Errorf("write-parallelism must be positive, got %d", m.WriteParallelism)
	}
	return nil
}

// Setup validates the configuration, loads credentials, starts the
// processing engine and opens the input and output stores. Run calls it;
// it is exported so the two processing steps can be driven separately.
func (m *Main) Setup() error {
	if err := m.validate(); err != nil {
		return errors.Wrap(err, "validating configuration")
	}

	if err := m.setupLog(); err != nil {
		return err
	}

	switch {
	case m.Statter != nil:
		m.stats = m.Statter
	case m.Stats:
		c := termstat.NewCollector(os.Stderr)
		m.closers = append(m.closers, c)
		m.stats = c
	default:
		m.stats = starschema.NopStatter{}
	}

	m.engine = engine.New(engine.OptLogger(m.log))

	var err error
	m.loc, err = time.LoadLocation(m.TimeZone)
	if err != nil {
		return errors.Wrapf(err, "loading time zone '%s'", m.TimeZone)
	}

	opts := []s3.Option{s3.OptRegion(m.Region), s3.OptACL(m.ACL)}
	if m.Endpoint != "" {
		opts = append(opts, s3.OptEndpoint(m.Endpoint))
	}
	if m.Credentials != "" {
		creds, err := s3.LoadCredentials(m.Credentials)
		if err != nil {
			return errors.Wrap(err, "loading credentials")
		}
		opts = append(opts, s3.OptCredentials(creds))
	}
	if m.in, err = OpenStore(m.InputData, opts...); err != nil {
		return errors.Wrap(err, "opening input")
	}
	if m.out, err = OpenStore(m.OutputData, opts...); err != nil {
		return errors.Wrap(err, "opening output")
	}
	m.log.Printf("reading from %v, writing to %v", m.in, m.out)
	return nil
}

func (m *Main) setupLog() error {
	if m.Logger != nil {
		m.log = m.Logger
		return nil
	}
	logOut := io.Writer(os.Stderr)
	if m.LogPath != "" {
		f, err := os.OpenFile(m.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return errors.Wrap(err, "opening log file")
		}
		m.closers = append(m.closers, f)
		logOut = f
	}
	if m.Verbose {
		m.log = starschema.VerboseLogger{Logger: log.New(logOut, "", log.LstdFlags)}
	} else {
		m.log = starschema.StdLogger{Logger: log.New(logOut, "", log.LstdFlags)}
	}
	return nil
}

// Close releases the log file and stops terminal stats, if any.
func (m *Main) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// OpenStore returns an S3 store for s3://, s3a:// and s3n:// locations and
// a local directory store for anything else. The options only apply to S3.
func OpenStore(location string, opts ...s3.Option) (starschema.Store, error) {
	if bucket, prefix, ok := s3.ParseLocation(location); ok {
		opts = append([]s3.Option{s3.OptBucket(bucket), s3.OptPrefix(prefix)}, opts...)
		s, err := s3.NewStore(opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", location)
		}
		return s, nil
	}
	return file.NewStore(location), nil
}
