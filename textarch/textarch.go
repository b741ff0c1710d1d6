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

// Package textarch implements the text archive encoding: a compact
// whitespace-separated token stream in which tag names are elided and
// field order carries the structure. Strings and byte slices are
// length-prefixed so embedded whitespace survives the trip.
package textarch

import (
	"bufio"
	"encoding/hex"
	"io"
	"strconv"

	"github.com/podser/podser"
)

// Name is the registered encoding name.
const Name = "text"

type encoding struct{}

func (encoding) Name() string { return Name }

func (encoding) NewWriter(w io.Writer) podser.ArchiveWriter {
	return &writer{w: bufio.NewWriter(w)}
}

func (encoding) NewReader(r io.Reader) (podser.ArchiveReader, error) {
	return &reader{r: bufio.NewReader(r)}, nil
}

// Encoding is the text archive encoding.
var Encoding podser.Encoding = encoding{}

func init() {
	if err := podser.RegisterEncoding(Encoding); err != nil {
		panic(err)
	}
}

type writer struct {
	w     *bufio.Writer
	wrote bool
	err   error
}

func (w *writer) token(tok string) error {
	if w.err != nil {
		return w.err
	}
	if w.wrote {
		if err := w.w.WriteByte(' '); err != nil {
			w.err = podser.FromError(err)
			return w.err
		}
	}
	if _, err := w.w.WriteString(tok); err != nil {
		w.err = podser.FromError(err)
		return w.err
	}
	w.wrote = true
	return nil
}

func (w *writer) BeginElement(string) error { return w.err }
func (w *writer) EndElement() error         { return w.err }

func (w *writer) WriteBool(_ string, v bool) error {
	if v {
		return w.token("1")
	}
	return w.token("0")
}

func (w *writer) WriteInt(_ string, v int64) error {
	return w.token(strconv.FormatInt(v, 10))
}

func (w *writer) WriteUint(_ string, v uint64) error {
	return w.token(strconv.FormatUint(v, 10))
}

func (w *writer) WriteFloat(_ string, v float64) error {
	return w.token(strconv.FormatFloat(v, 'g', 17, 64))
}

func (w *writer) WriteString(_ string, v string) error {
	// Length prefix, one space, then the raw bytes.
	if err := w.token(strconv.Itoa(len(v))); err != nil {
		return err
	}
	if err := w.w.WriteByte(' '); err != nil {
		w.err = podser.FromError(err)
		return w.err
	}
	if _, err := w.w.WriteString(v); err != nil {
		w.err = podser.FromError(err)
		return w.err
	}
	return nil
}

func (w *writer) WriteBytes(_ string, v []byte) error {
	if len(v) == 0 {
		return w.token(emptyBytesToken)
	}
	return w.token(hex.EncodeToString(v))
}

func (w *writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return podser.FromError(w.w.Flush())
}

type reader struct {
	r *bufio.Reader
}

func (r *reader) BeginElement(string) error { return nil }
func (r *reader) EndElement() error         { return nil }

func (r *reader) token(name string) (string, error) {
	// Skip leading whitespace.
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return "", podser.DeserializationErrorf("missing value for %q: %v", name, err)
		}
		if b != ' ' && b != '\n' && b != '\t' && b != '\r' {
			if err := r.r.UnreadByte(); err != nil {
				return "", podser.FromError(err)
			}
			break
		}
	}
	var tok []byte
	for {
		b, err := r.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", podser.FromError(err)
		}
		if b == ' ' || b == '\n' || b == '\t' || b == '\r' {
			if err := r.r.UnreadByte(); err != nil {
				return "", podser.FromError(err)
			}
			break
		}
		tok = append(tok, b)
	}
	if len(tok) == 0 {
		return "", podser.DeserializationErrorf("missing value for %q", name)
	}
	return string(tok), nil
}

func (r *reader) ReadBool(name string) (bool, error) {
	tok, err := r.token(name)
	if err != nil {
		return false, err
	}
	switch tok {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, podser.DeserializationErrorf("malformed bool %q for %q", tok, name)
}

func (r *reader) ReadInt(name string) (int64, error) {
	tok, err := r.token(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, podser.DeserializationErrorf("malformed integer %q for %q", tok, name)
	}
	return v, nil
}

func (r *reader) ReadUint(name string) (uint64, error) {
	tok, err := r.token(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, podser.DeserializationErrorf("malformed unsigned integer %q for %q", tok, name)
	}
	return v, nil
}

func (r *reader) ReadFloat(name string) (float64, error) {
	tok, err := r.token(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, podser.DeserializationErrorf("malformed float %q for %q", tok, name)
	}
	return v, nil
}

func (r *reader) ReadString(name string) (string, error) {
	tok, err := r.token(name)
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return "", podser.DeserializationErrorf("malformed string length %q for %q", tok, name)
	}
	// One separator byte, then exactly n raw bytes.
	if _, err := r.r.ReadByte(); err != nil {
		return "", podser.DeserializationErrorf("truncated string for %q", name)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", podser.DeserializationErrorf("truncated string for %q", name)
	}
	return string(buf), nil
}

func (r *reader) ReadBytes(name string) ([]byte, error) {
	tok, err := r.token(name)
	if err != nil {
		return nil, err
	}
	if tok == emptyBytesToken {
		return []byte{}, nil
	}
	v, err := hex.DecodeString(tok)
	if err != nil {
		return nil, podser.DeserializationErrorf("malformed bytes for %q", name)
	}
	return v, nil
}

// emptyBytesToken keeps a zero-length byte slice from producing an empty
// token that the reader would reject.
const emptyBytesToken = "-"
