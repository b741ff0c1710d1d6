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

// Package yamlarch implements the YAML archive encoding. The archive is a
// single YAML document whose mappings mirror the element structure; byte
// slices are stored as base64 strings. Key order follows write order.
package yamlarch

import (
	"encoding/base64"
	"io"
	"math"

	"github.com/goccy/go-yaml"

	"github.com/podser/podser"
)

// Name is the registered encoding name.
const Name = "yaml"

type encoding struct{}

func (encoding) Name() string { return Name }

func (encoding) NewWriter(w io.Writer) podser.ArchiveWriter {
	root := &yaml.MapSlice{}
	return &writer{dst: w, root: root, stack: []*yaml.MapSlice{root}}
}

func (encoding) NewReader(r io.Reader) (podser.ArchiveReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, podser.FromError(err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, podser.DeserializationErrorf("malformed YAML archive: %v", err)
	}
	return &reader{stack: []map[string]interface{}{doc}}, nil
}

// Encoding is the YAML archive encoding.
var Encoding podser.Encoding = encoding{}

func init() {
	if err := podser.RegisterEncoding(Encoding); err != nil {
		panic(err)
	}
}

// writer builds the document in memory and marshals it on Flush. YAML has
// no incremental emitter worth the trouble for archive-sized documents.
type writer struct {
	dst       io.Writer
	root      *yaml.MapSlice
	stack     []*yaml.MapSlice
	finalized bool
}

func (w *writer) put(name string, v interface{}) error {
	if w.finalized {
		return podser.ProtocolErrorf("write into a finalized YAML archive")
	}
	top := w.stack[len(w.stack)-1]
	*top = append(*top, yaml.MapItem{Key: name, Value: v})
	return nil
}

func (w *writer) BeginElement(name string) error {
	child := &yaml.MapSlice{}
	if err := w.put(name, child); err != nil {
		return err
	}
	w.stack = append(w.stack, child)
	return nil
}

func (w *writer) EndElement() error {
	if len(w.stack) < 2 {
		return podser.ProtocolErrorf("unbalanced EndElement in YAML archive")
	}
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

func (w *writer) WriteBool(name string, v bool) error { return w.put(name, v) }
func (w *writer) WriteInt(name string, v int64) error { return w.put(name, v) }
func (w *writer) WriteUint(name string, v uint64) error { return w.put(name, v) }
func (w *writer) WriteFloat(name string, v float64) error { return w.put(name, v) }
func (w *writer) WriteString(name string, v string) error { return w.put(name, v) }

func (w *writer) WriteBytes(name string, v []byte) error {
	return w.put(name, base64.StdEncoding.EncodeToString(v))
}

func (w *writer) Flush() error {
	if !w.finalized {
		w.finalized = true
		data, err := yaml.Marshal(resolve(w.root))
		if err != nil {
			return podser.FromError(err)
		}
		if _, err := w.dst.Write(data); err != nil {
			return podser.FromError(err)
		}
	}
	return nil
}

// resolve replaces *yaml.MapSlice placeholders with their values so the
// marshaller sees plain MapSlices at every level.
func resolve(m *yaml.MapSlice) yaml.MapSlice {
	out := make(yaml.MapSlice, 0, len(*m))
	for _, item := range *m {
		if child, ok := item.Value.(*yaml.MapSlice); ok {
			item.Value = resolve(child)
		}
		out = append(out, item)
	}
	return out
}

type reader struct {
	stack []map[string]interface{}
}

func (r *reader) lookup(name string) (interface{}, error) {
	v, ok := r.stack[len(r.stack)-1][name]
	if !ok {
		return nil, podser.DeserializationErrorf("missing element %q in YAML archive", name)
	}
	return v, nil
}

func (r *reader) BeginElement(name string) error {
	v, err := r.lookup(name)
	if err != nil {
		return err
	}
	m, err := asMapping(v)
	if err != nil {
		return podser.DeserializationErrorf("element %q is not a mapping", name)
	}
	r.stack = append(r.stack, m)
	return nil
}

func (r *reader) EndElement() error {
	if len(r.stack) < 2 {
		return podser.ProtocolErrorf("unbalanced EndElement in YAML archive")
	}
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

// asMapping normalizes the two mapping shapes go-yaml may decode into.
func asMapping(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, podser.DeserializationErrorf("non-string key in YAML mapping")
			}
			out[key] = val
		}
		return out, nil
	default:
		return nil, podser.DeserializationErrorf("not a YAML mapping")
	}
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

func (r *reader) ReadInt(name string) (int64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, podser.DeserializationErrorf("element %q overflows int64", name)
		}
		return int64(n), nil
	default:
		return 0, podser.DeserializationErrorf("element %q is not an integer", name)
	}
}

func (r *reader) ReadUint(name string) (uint64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		if n < 0 {
			return 0, podser.DeserializationErrorf("element %q is negative", name)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, podser.DeserializationErrorf("element %q is negative", name)
		}
		return uint64(n), nil
	case uint64:
		return n, nil
	default:
		return 0, podser.DeserializationErrorf("element %q is not an unsigned integer", name)
	}
}

func (r *reader) ReadFloat(name string) (float64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, podser.DeserializationErrorf("element %q is not a float", name)
	}
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
