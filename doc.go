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

// Package starschema turns raw song metadata and user listening logs into a
// small star schema of columnar tables.
//
// Data moves through five stages.
//
// 1. Store
//
//    A starschema.Store is a key-path-addressed byte store. The same
//    interface fronts a local directory (package file) and an S3 bucket
//    (package aws/s3), so input JSON and output tables can live in either.
//    Stores also hand out parquet file handles so that columnar writes can
//    stream straight into the backing storage.
//
// 2. Source
//
//    A Source yields one raw record at a time. The json package decodes
//    objects from each object in the store, whether a file holds a single
//    JSON document (song metadata) or one document per line (event logs).
//    Sources don't interpret the data.
//
// 3. Parser
//
//    ParseSong and ParseLog coerce the decoded maps into SongRecord and
//    LogRecord. They are lenient in the way schema-on-read
//    engines are: numbers and numeric strings are interchangeable, and null
//    becomes the zero value or nil for nullable columns.
//
// 4. Transform
//
//    The Plays, Songs, Artists, Users, Times and Songplays functions are
//    Apache Beam transforms deriving each table from a PCollection of
//    parsed records. Package engine runs them and collects the rows, which
//    are then put in the fixed order given by each row type's Less method.
//
// 5. Table
//
//    Package table writes each derived table as Hive-style partitioned
//    parquet files with full overwrite semantics, and reads a table back
//    (songplays joins against the songs table as persisted).
//
// Package etl runs the stages, song data first.
package starschema
