// Package json decodes JSON objects out of stored objects. A stored object
// may hold a single document or a stream of documents (one per line, as
// event logs are written); both decode the same way.
package json

import (
	"encoding/json"
	"io"

	"github.com/pilosa/starschema"
	"github.com/pkg/errors"
)

// Source is a starschema.Source for reading json data.
type Source struct {
	dec  *json.Decoder
	name string
	n    int
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader) *Source {
	return &Source{
		dec: json.NewDecoder(r),
	}
}

// NewNamedSource is like NewSource, but errors mention the object's name.
func NewNamedSource(r starschema.NamedReadCloser) *Source {
	s := NewSource(r)
	s.name = r.Name()
	return s
}

// Record implements starschema.Source. It returns the next json value that
// can be decoded from the reader, which is a map[string]interface{} for any
// well formed record. io.EOF is returned unwrapped once the stream is done.
//
// A *SyntaxError means the stream holds something other than JSON and can't
// be decoded any further. Any other error comes from the underlying reader.
func (s *Source) Record() (rec interface{}, err error) {
	var res interface{}
	err = s.dec.Decode(&res)
	switch {
	case err == nil:
	case err == io.EOF:
		return nil, io.EOF
	case isSyntax(err):
		return nil, &SyntaxError{Name: s.name, Record: s.n, Err: err}
	default:
		return nil, errors.Wrapf(err, "reading record %d", s.n)
	}
	s.n++
	return res, nil
}

func isSyntax(err error) bool {
	switch err.(type) {
	case *json.SyntaxError, *json.UnmarshalTypeError:
		return true
	}
	return err == io.ErrUnexpectedEOF
}

// SyntaxError reports undecodable JSON in an object.
type SyntaxError struct {
	Name   string
	Record int
	Err    error
}

func (e *SyntaxError) Error() string {
	if e.Name == "" {
		return errors.Wrapf(e.Err, "decoding record %d", e.Record).Error()
	}
	return errors.Wrapf(e.Err, "decoding record %d of %s", e.Record, e.Name).Error()
}

func (e *SyntaxError) Cause() error { return e.Err }
