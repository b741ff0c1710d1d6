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

// memNode and the mem writer/reader below form a trivial in-memory
// archive for tests in this package, so the protocol can be exercised
// without importing an encoding subpackage.

type memNode map[string]interface{}

type memWriter struct {
	root  memNode
	stack []memNode
}

func newMemWriter() *memWriter {
	root := memNode{}
	return &memWriter{root: root, stack: []memNode{root}}
}

func (w *memWriter) reader() *memReader {
	return &memReader{stack: []memNode{w.root}}
}

func (w *memWriter) top() memNode { return w.stack[len(w.stack)-1] }

func (w *memWriter) BeginElement(name string) error {
	child := memNode{}
	w.top()[name] = child
	w.stack = append(w.stack, child)
	return nil
}

func (w *memWriter) EndElement() error {
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

func (w *memWriter) WriteBool(name string, v bool) error { w.top()[name] = v; return nil }
func (w *memWriter) WriteInt(name string, v int64) error { w.top()[name] = v; return nil }
func (w *memWriter) WriteUint(name string, v uint64) error { w.top()[name] = v; return nil }
func (w *memWriter) WriteFloat(name string, v float64) error { w.top()[name] = v; return nil }
func (w *memWriter) WriteString(name string, v string) error { w.top()[name] = v; return nil }
func (w *memWriter) WriteBytes(name string, v []byte) error { w.top()[name] = v; return nil }
func (w *memWriter) Flush() error { return nil }

type memReader struct {
	stack []memNode
}

func (r *memReader) top() memNode { return r.stack[len(r.stack)-1] }

func (r *memReader) lookup(name string) (interface{}, error) {
	v, ok := r.top()[name]
	if !ok {
		return nil, DeserializationErrorf("missing element %q", name)
	}
	return v, nil
}

func (r *memReader) BeginElement(name string) error {
	v, err := r.lookup(name)
	if err != nil {
		return err
	}
	child, ok := v.(memNode)
	if !ok {
		return DeserializationErrorf("element %q is not an element", name)
	}
	r.stack = append(r.stack, child)
	return nil
}

func (r *memReader) EndElement() error {
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

func (r *memReader) ReadBool(name string) (bool, error) {
	v, err := r.lookup(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, DeserializationErrorf("element %q is not a bool", name)
	}
	return b, nil
}

func (r *memReader) ReadInt(name string) (int64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, DeserializationErrorf("element %q is not an int", name)
	}
	return n, nil
}

func (r *memReader) ReadUint(name string) (uint64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	n, ok := v.(uint64)
	if !ok {
		return 0, DeserializationErrorf("element %q is not a uint", name)
	}
	return n, nil
}

func (r *memReader) ReadFloat(name string) (float64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	n, ok := v.(float64)
	if !ok {
		return 0, DeserializationErrorf("element %q is not a float", name)
	}
	return n, nil
}

func (r *memReader) ReadString(name string) (string, error) {
	v, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", DeserializationErrorf("element %q is not a string", name)
	}
	return s, nil
}

func (r *memReader) ReadBytes(name string) ([]byte, error) {
	v, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, DeserializationErrorf("element %q is not bytes", name)
	}
	return b, nil
}
