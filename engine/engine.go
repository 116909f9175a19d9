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

// Package engine runs batch pipelines on Apache Beam's direct runner and
// hands their results back as slices.
//
// A Pipeline is built from typed slices with Create, transformed with
// ordinary Beam transforms on its Scope, and read back with Collect or Count
// once Engine.Run has returned.
package engine

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	beamlog "github.com/apache/beam/sdks/v2/go/pkg/beam/log"
	_ "github.com/apache/beam/sdks/v2/go/pkg/beam/runners/direct"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/transforms/stats"
	"github.com/google/uuid"
	"github.com/pilosa/starschema"
	"github.com/pkg/errors"
)

// Runner is the Beam runner pipelines are executed with.
const Runner = "direct"

func init() {
	beam.RegisterType(reflect.TypeOf((*collectFn)(nil)).Elem())
}

// Engine executes pipelines.
type Engine struct {
	log starschema.Logger
}

// Option is a functional option type for Engine.
type Option func(e *Engine)

// OptLogger sets the logger Beam's own messages are sent to. Beam's
// informational output is logged at debug level.
func OptLogger(l starschema.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New initializes Beam and returns an Engine ready to run pipelines.
func New(opts ...Option) *Engine {
	e := &Engine{log: starschema.NopLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	beam.Init()
	beamlog.SetLogger(beamLogger{log: e.log})
	return e
}

type beamLogger struct {
	log starschema.Logger
}

func (b beamLogger) Log(ctx context.Context, sev beamlog.Severity, calldepth int, msg string) {
	if sev >= beamlog.SevWarn {
		b.log.Printf("beam: %s", msg)
		return
	}
	b.log.Debugf("beam: %s", msg)
}

// Pipeline is a Beam pipeline along with the outputs registered on it.
type Pipeline struct {
	p     *beam.Pipeline
	s     beam.Scope
	sinks []string
}

// NewPipeline returns an empty pipeline.
func (e *Engine) NewPipeline() *Pipeline {
	p, s := beam.NewPipelineWithRoot()
	return &Pipeline{p: p, s: s}
}

// Scope returns the root scope of the pipeline.
func (p *Pipeline) Scope() beam.Scope { return p.s }

// Run executes the pipeline and blocks until it has finished. Outputs of p
// may be read once Run returns without error.
func (e *Engine) Run(ctx context.Context, p *Pipeline) error {
	defer func() {
		for _, id := range p.sinks {
			sinks.Delete(id)
		}
	}()
	if _, err := beam.Run(ctx, Runner, p.p); err != nil {
		return errors.Wrap(err, "executing pipeline")
	}
	return nil
}

// Create turns rows into a PCollection. rows may be empty.
func Create[T any](p *Pipeline, rows []T) beam.PCollection {
	if rows == nil {
		rows = []T{}
	}
	return beam.CreateList(p.s, rows)
}

// sinks maps a sink id to the *sink collecting for it. collectFn looks its
// sink up here, which requires the runner to execute in this process.
var sinks sync.Map

type sink struct {
	mu    sync.Mutex
	elems []interface{}
}

func (s *sink) add(elm interface{}) {
	s.mu.Lock()
	s.elems = append(s.elems, elm)
	s.mu.Unlock()
}

func (s *sink) all() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elems
}

func newSink(p *Pipeline) (string, *sink) {
	id := uuid.New().String()
	sk := &sink{}
	sinks.Store(id, sk)
	p.sinks = append(p.sinks, id)
	return id, sk
}

type collectFn struct {
	Sink string
}

func (f *collectFn) ProcessElement(elm beam.T) error {
	v, ok := sinks.Load(f.Sink)
	if !ok {
		return errors.Errorf("no sink %s", f.Sink)
	}
	v.(*sink).add(elm)
	return nil
}

// Output holds the elements of a collected PCollection.
type Output[T any] struct {
	sink *sink
	less func(a, b T) bool
}

// Collect arranges for the elements of col, which must be of type T, to be
// kept when p runs. If less is non-nil Rows sorts by it.
func Collect[T any](p *Pipeline, col beam.PCollection, less func(a, b T) bool) *Output[T] {
	id, sk := newSink(p)
	beam.ParDo0(p.s.Scope("Collect"), &collectFn{Sink: id}, col)
	return &Output[T]{sink: sk, less: less}
}

// Rows returns the collected elements.
func (o *Output[T]) Rows() []T {
	elems := o.sink.all()
	rows := make([]T, len(elems))
	for i, elm := range elems {
		rows[i] = elm.(T)
	}
	if o.less != nil {
		sort.SliceStable(rows, func(i, j int) bool { return o.less(rows[i], rows[j]) })
	}
	return rows
}

// Counter holds the number of elements of a PCollection.
type Counter struct {
	sink *sink
}

// Count arranges for the elements of col to be counted when p runs.
func Count(p *Pipeline, col beam.PCollection) *Counter {
	s := p.s.Scope("Count")
	id, sk := newSink(p)
	beam.ParDo0(s, &collectFn{Sink: id}, stats.CountElms(s, col))
	return &Counter{sink: sk}
}

// Value returns the count. An empty PCollection counts as 0.
func (c *Counter) Value() int64 {
	var n int64
	for _, elm := range c.sink.all() {
		switch v := elm.(type) {
		case int:
			n += int64(v)
		case int64:
			n += v
		}
	}
	return n
}
