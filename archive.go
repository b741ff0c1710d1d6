// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package podser

import (
	"io"
	"sync"
)

// ArchiveWriter is the save half of the named-value visitation contract.
// The protocol core only ever hands primitives and element boundaries to
// the writer; the bytes on the wire are entirely the encoding's business.
//
// Writers buffer freely. Flush finalizes the archive; no writes may follow
// it.
type ArchiveWriter interface {
	BeginElement(name string) error
	EndElement() error

	WriteBool(name string, v bool) error
	WriteInt(name string, v int64) error
	WriteUint(name string, v uint64) error
	WriteFloat(name string, v float64) error
	WriteString(name string, v string) error
	WriteBytes(name string, v []byte) error

	Flush() error
}

// ArchiveReader is the load half of the named-value visitation contract.
// Readers report missing tags, malformed input and type mismatches as
// deserialization errors; the core propagates them unchanged.
type ArchiveReader interface {
	BeginElement(name string) error
	EndElement() error

	ReadBool(name string) (bool, error)
	ReadInt(name string) (int64, error)
	ReadUint(name string) (uint64, error)
	ReadFloat(name string) (float64, error)
	ReadString(name string) (string, error)
	ReadBytes(name string) ([]byte, error)
}

// Encoding constructs archive writers and readers over byte streams.
type Encoding interface {
	Name() string
	NewWriter(w io.Writer) ArchiveWriter
	NewReader(r io.Reader) (ArchiveReader, error)
}

var encodingsMu sync.RWMutex
var encodings = make(map[string]Encoding)

// RegisterEncoding makes an encoding available by name. Encodings register
// themselves from their package init; registering two encodings under one
// name is an error.
func RegisterEncoding(e Encoding) error {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	if _, ok := encodings[e.Name()]; ok {
		return ProtocolErrorf("encoding %q is already registered", e.Name())
	}
	encodings[e.Name()] = e
	return nil
}

// GetEncoding returns a registered encoding by name.
func GetEncoding(name string) (Encoding, error) {
	encodingsMu.RLock()
	defer encodingsMu.RUnlock()
	e, ok := encodings[name]
	if !ok {
		return nil, ProtocolErrorf("no encoding registered under %q", name)
	}
	return e, nil
}

// countingWriter is the discard sink behind the size probes: it counts
// bytes and drops them.
type countingWriter struct {
	n int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
