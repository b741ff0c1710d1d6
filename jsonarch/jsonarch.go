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

// Package jsonarch implements the JSON archive encoding. Elements become
// JSON objects, tag names become keys, and byte slices become base64
// strings. The whole archive is one root object, so every top-level tag
// written into one archive must be distinct.
package jsonarch

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/podser/podser"
)

// Name is the registered encoding name.
const Name = "json"

var jsonCfg = jsoniter.Config{UseNumber: true}.Froze()

type encoding struct{}

func (encoding) Name() string { return Name }

func (encoding) NewWriter(w io.Writer) podser.ArchiveWriter {
	return &writer{stream: jsoniter.NewStream(jsonCfg, w, 512)}
}

func (encoding) NewReader(r io.Reader) (podser.ArchiveReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, podser.FromError(err)
	}
	var doc map[string]interface{}
	if err := jsonCfg.Unmarshal(data, &doc); err != nil {
		return nil, podser.DeserializationErrorf("malformed JSON archive: %v", err)
	}
	return &reader{stack: []map[string]interface{}{doc}}, nil
}

// Encoding is the JSON archive encoding.
var Encoding podser.Encoding = encoding{}

func init() {
	if err := podser.RegisterEncoding(Encoding); err != nil {
		panic(err)
	}
}

type writer struct {
	stream *jsoniter.Stream

	// fieldCounts tracks fields written per open object so commas land in
	// the right places; level 0 is the root object.
	fieldCounts []int
	finalized   bool
}

func (w *writer) ensureRoot() {
	if len(w.fieldCounts) == 0 {
		w.stream.WriteObjectStart()
		w.fieldCounts = append(w.fieldCounts, 0)
	}
}

func (w *writer) fieldPrefix(name string) error {
	if w.finalized {
		return podser.ProtocolErrorf("write into a finalized JSON archive")
	}
	w.ensureRoot()
	top := len(w.fieldCounts) - 1
	if w.fieldCounts[top] > 0 {
		w.stream.WriteMore()
	}
	w.fieldCounts[top]++
	w.stream.WriteObjectField(name)
	return nil
}

func (w *writer) check() error {
	if w.stream.Error != nil {
		return podser.FromError(w.stream.Error)
	}
	return nil
}

func (w *writer) BeginElement(name string) error {
	if err := w.fieldPrefix(name); err != nil {
		return err
	}
	w.stream.WriteObjectStart()
	w.fieldCounts = append(w.fieldCounts, 0)
	return w.check()
}

func (w *writer) EndElement() error {
	if len(w.fieldCounts) < 2 {
		return podser.ProtocolErrorf("unbalanced EndElement in JSON archive")
	}
	w.stream.WriteObjectEnd()
	w.fieldCounts = w.fieldCounts[:len(w.fieldCounts)-1]
	return w.check()
}

func (w *writer) WriteBool(name string, v bool) error {
	if err := w.fieldPrefix(name); err != nil {
		return err
	}
	w.stream.WriteBool(v)
	return w.check()
}

func (w *writer) WriteInt(name string, v int64) error {
	if err := w.fieldPrefix(name); err != nil {
		return err
	}
	w.stream.WriteInt64(v)
	return w.check()
}

func (w *writer) WriteUint(name string, v uint64) error {
	if err := w.fieldPrefix(name); err != nil {
		return err
	}
	w.stream.WriteUint64(v)
	return w.check()
}

func (w *writer) WriteFloat(name string, v float64) error {
	if err := w.fieldPrefix(name); err != nil {
		return err
	}
	w.stream.WriteFloat64(v)
	return w.check()
}

func (w *writer) WriteString(name string, v string) error {
	if err := w.fieldPrefix(name); err != nil {
		return err
	}
	w.stream.WriteString(v)
	return w.check()
}

func (w *writer) WriteBytes(name string, v []byte) error {
	if err := w.fieldPrefix(name); err != nil {
		return err
	}
	w.stream.WriteString(base64.StdEncoding.EncodeToString(v))
	return w.check()
}

func (w *writer) Flush() error {
	if !w.finalized {
		w.ensureRoot()
		w.stream.WriteObjectEnd()
		w.finalized = true
	}
	if err := w.stream.Flush(); err != nil {
		return podser.FromError(err)
	}
	return w.check()
}

type reader struct {
	stack []map[string]interface{}
}

func (r *reader) top() map[string]interface{} {
	return r.stack[len(r.stack)-1]
}

func (r *reader) lookup(name string) (interface{}, error) {
	v, ok := r.top()[name]
	if !ok {
		return nil, podser.DeserializationErrorf("missing element %q in JSON archive", name)
	}
	return v, nil
}

func (r *reader) BeginElement(name string) error {
	v, err := r.lookup(name)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return podser.DeserializationErrorf("element %q is not an object", name)
	}
	r.stack = append(r.stack, m)
	return nil
}

func (r *reader) EndElement() error {
	if len(r.stack) < 2 {
		return podser.ProtocolErrorf("unbalanced EndElement in JSON archive")
	}
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

func (r *reader) ReadBool(name string) (bool, error) {
	v, err := r.lookup(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, podser.DeserializationErrorf("element %q is not a bool", name)
	}
	return b, nil
}

func (r *reader) number(name string) (json.Number, error) {
	v, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	n, ok := v.(json.Number)
	if !ok {
		return "", podser.DeserializationErrorf("element %q is not a number", name)
	}
	return n, nil
}

func (r *reader) ReadInt(name string) (int64, error) {
	n, err := r.number(name)
	if err != nil {
		return 0, err
	}
	v, err := n.Int64()
	if err != nil {
		return 0, podser.DeserializationErrorf("element %q is not an integer: %v", name, err)
	}
	return v, nil
}

func (r *reader) ReadUint(name string) (uint64, error) {
	n, err := r.number(name)
	if err != nil {
		return 0, err
	}
	v, err := parseUint(n)
	if err != nil {
		return 0, podser.DeserializationErrorf("element %q is not an unsigned integer: %v", name, err)
	}
	return v, nil
}

func (r *reader) ReadFloat(name string) (float64, error) {
	n, err := r.number(name)
	if err != nil {
		return 0, err
	}
	v, err := n.Float64()
	if err != nil {
		return 0, podser.DeserializationErrorf("element %q is not a float: %v", name, err)
	}
	return v, nil
}

func (r *reader) ReadString(name string) (string, error) {
	v, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", podser.DeserializationErrorf("element %q is not a string", name)
	}
	return s, nil
}

func (r *reader) ReadBytes(name string) ([]byte, error) {
	s, err := r.ReadString(name)
	if err != nil {
		return nil, err
	}
	v, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, podser.DeserializationErrorf("element %q is not base64 data", name)
	}
	return v, nil
}

func parseUint(n json.Number) (uint64, error) {
	return strconv.ParseUint(n.String(), 10, 64)
}
