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

// Package s3 implements starschema.Store over an S3 bucket, and loads the
// static credentials used to reach it.
package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pilosa/starschema"
	"github.com/pkg/errors"
	parquets3 "github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go/source"
)

// deleteBatch is the most keys a single DeleteObjects call accepts.
const deleteBatch = 1000

// Option is a functional option type for s3.Store.
type Option func(s *Store)

// OptBucket sets the S3 bucket for a Store.
func OptBucket(bucket string) Option {
	return func(s *Store) {
		s.bucket = bucket
	}
}

// OptPrefix roots the Store at a key prefix within the bucket. A trailing
// slash is added if missing.
func OptPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = normalizePrefix(prefix)
	}
}

// OptRegion sets the AWS region for a Store.
func OptRegion(region string) Option {
	return func(s *Store) {
		s.region = region
	}
}

// OptEndpoint points the Store at an S3 compatible service rather than AWS.
// Path style addressing is used.
func OptEndpoint(endpoint string) Option {
	return func(s *Store) {
		s.endpoint = endpoint
	}
}

// OptCredentials gives the Store static credentials. Without it the
// default AWS credential chain applies.
func OptCredentials(c Credentials) Option {
	return func(s *Store) {
		s.creds = &c
	}
}

// OptACL sets the canned ACL applied to objects written by the Store. An
// empty acl leaves the bucket's default in place.
func OptACL(acl string) Option {
	return func(s *Store) {
		s.acl = acl
	}
}

// OptClient replaces the S3 client used for everything but parquet file
// handles.
func OptClient(client s3iface.S3API) Option {
	return func(s *Store) {
		s.client = client
	}
}

// Store is a starschema.Store over the objects of an S3 bucket.
type Store struct {
	bucket   string
	prefix   string
	region   string
	endpoint string
	acl      string
	creds    *Credentials

	cfg    *aws.Config
	client s3iface.S3API
}

// NewStore returns a new Store with the options applied.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		region: "us-west-2",
		acl:    "bucket-owner-full-control",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bucket == "" {
		return nil, errors.New("no bucket given")
	}
	s.cfg = &aws.Config{Region: aws.String(s.region)}
	if s.endpoint != "" {
		s.cfg.Endpoint = aws.String(s.endpoint)
		s.cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if s.creds != nil {
		s.cfg.Credentials = credentials.NewStaticCredentials(s.creds.AccessKeyID, s.creds.SecretAccessKey, "")
	}
	if s.client == nil {
		sess, err := session.NewSession(s.cfg)
		if err != nil {
			return nil, errors.Wrap(err, "getting new session")
		}
		s.client = s3.New(sess)
	}
	return s, nil
}

func (s *Store) key(key string) string { return s.prefix + key }

// List implements starschema.Store.
func (s *Store) List(prefix string) ([]string, error) {
	var keys []string
	err := s.client.ListObjectsPages(&s3.ListObjectsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	}, func(page *s3.ListObjectsOutput, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue // folder placeholder
			}
			keys = append(keys, strings.TrimPrefix(key, s.prefix))
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing s3://%s/%s", s.bucket, s.key(prefix))
	}
	sort.Strings(keys)
	return keys, nil
}

type objReader struct {
	name string
	size int64
	body io.ReadCloser
}

func (o *objReader) Read(buf []byte) (n int, err error) {
	return o.body.Read(buf)
}

func (o *objReader) Close() error {
	return o.body.Close()
}

func (o *objReader) Name() string {
	return o.name
}

func (o *objReader) Meta() map[string]interface{} {
	return map[string]interface{}{"size": o.size}
}

// Open implements starschema.Store.
func (s *Store) Open(key string) (starschema.NamedReadCloser, error) {
	result, err := s.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", key)
	}
	return &objReader{name: key, size: aws.Int64Value(result.ContentLength), body: result.Body}, nil
}

// Exists implements starschema.Store.
func (s *Store) Exists(key string) (bool, error) {
	_, err := s.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err == nil {
		return true, nil
	}
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == 404 {
		return false, nil
	}
	return false, errors.Wrapf(err, "heading %v", key)
}

// Put implements starschema.Store.
func (s *Store) Put(key string, data []byte) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(data),
	}
	if s.acl != "" {
		in.ACL = aws.String(s.acl)
	}
	_, err := s.client.PutObject(in)
	return errors.Wrapf(err, "putting %v", key)
}

// RemoveAll implements starschema.Store.
func (s *Store) RemoveAll(prefix string) error {
	if prefix == "" {
		return errors.New("refusing to remove the store root")
	}
	keys, err := s.List(prefix)
	if err != nil {
		return errors.Wrap(err, "listing")
	}
	for start := 0; start < len(keys); start += deleteBatch {
		end := start + deleteBatch
		if end > len(keys) {
			end = len(keys)
		}
		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(s.key(key))})
		}
		out, err := s.client.DeleteObjects(&s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Wrapf(err, "deleting under %v", prefix)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return errors.Errorf("deleting %s: %s (%d failed)", aws.StringValue(first.Key), aws.StringValue(first.Message), len(out.Errors))
		}
	}
	return nil
}

// ParquetWriter implements starschema.Store. The object is uploaded as it
// is written and completed on Close.
func (s *Store) ParquetWriter(key string) (source.ParquetFile, error) {
	fw, err := parquets3.NewS3FileWriter(context.Background(), s.bucket, s.key(key), s.acl, nil, s.cfg)
	return fw, errors.Wrapf(err, "creating s3 writer for %v", key)
}

// ParquetReader implements starschema.Store.
func (s *Store) ParquetReader(key string) (source.ParquetFile, error) {
	fr, err := parquets3.NewS3FileReader(context.Background(), s.bucket, s.key(key), s.cfg)
	return fr, errors.Wrapf(err, "creating s3 reader for %v", key)
}

func (s *Store) String() string { return "s3://" + s.bucket + "/" + s.prefix }

func normalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// ParseLocation splits an s3://, s3a:// or s3n:// URL into bucket and key
// prefix. ok is false for anything else.
func ParseLocation(location string) (bucket, prefix string, ok bool) {
	for _, scheme := range []string{"s3://", "s3a://", "s3n://"} {
		if strings.HasPrefix(location, scheme) {
			rest := strings.TrimPrefix(location, scheme)
			parts := strings.SplitN(rest, "/", 2)
			if parts[0] == "" {
				return "", "", false
			}
			if len(parts) == 2 {
				prefix = normalizePrefix(parts[1])
			}
			return parts[0], prefix, true
		}
	}
	return "", "", false
}
