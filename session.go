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
	"reflect"

	"go.uber.org/zap"
)

// Session scopes shared-object aliasing to one archive lifetime. The
// first write of a shared instance carries its payload under a fresh
// reference id; every later write of the same instance within the
// session carries the id alone. Reads mirror that, so N stored
// references to one instance come back as N handles aliasing a single
// reconstructed instance.
//
// A Session is single-threaded, like the rest of the protocol, and must
// not span archives: ids are only meaningful within the archive they
// were written to.
type Session struct {
	logger *zap.Logger

	writeRefs map[interface{}]uint64
	readRefs  map[uint64]interface{}
	nextID    uint64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger installs a structured logger on the session. Nop by
// default.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates an empty session for one archive lifetime.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		logger:    zap.NewNop(),
		writeRefs: make(map[interface{}]uint64),
		readRefs:  make(map[uint64]interface{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SerializeShared writes a shared handle into the archive. The codec must
// be declared with Kind Shared; such types never serialize by value, so a
// handle is the only way in. A nil handle round-trips as nil.
func SerializeShared[T any](s *Session, c *Codec[T], w ArchiveWriter, v *T, tag ...string) error {
	core := c.c
	if core.kind != Shared {
		return ProtocolErrorf("type %s is not declared as a shared object", core.name)
	}
	ctx := newWriteContext(w, s)
	ctx.begin(core.tagOr(tag))
	var handle interface{}
	if v != nil {
		handle = v
	}
	core.saveShared(ctx, handle)
	ctx.end()
	return ctx.Err()
}

// DeserializeShared reads a shared handle back. Reference ids resolve to
// the instance constructed when their defining entry was read, preserving
// aliasing instead of duplicating the object.
func DeserializeShared[T any](s *Session, c *Codec[T], r ArchiveReader, tag ...string) (*T, error) {
	core := c.c
	if core.kind != Shared {
		return nil, ProtocolErrorf("type %s is not declared as a shared object", core.name)
	}
	ctx := newReadContext(r, s)
	ctx.begin(core.tagOr(tag))
	h := core.loadShared(ctx)
	ctx.end()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}
	return h.(*T), nil
}

// saveShared writes one shared-handle occurrence inside an already-open
// element: the reference id, the defining flag, and the payload body for
// the defining occurrence only. handle is the *T or nil.
func (c *codecCore) saveShared(ctx *WriteContext, handle interface{}) {
	if ctx.HasError() {
		return
	}
	s := ctx.sharedSession()
	if handle == nil {
		ctx.writeUint("ref", 0)
		return
	}
	if id, ok := s.writeRefs[handle]; ok {
		ctx.writeUint("ref", id)
		ctx.writeBool("def", false)
		return
	}
	s.nextID++
	id := s.nextID
	s.writeRefs[handle] = id
	ctx.writeUint("ref", id)
	ctx.writeBool("def", true)
	c.newSavePod(reflect.ValueOf(handle).Elem().Interface()).saveBody(ctx)
	if !ctx.HasError() {
		s.logger.Debug("wrote shared instance",
			zap.String("type", c.name), zap.Uint64("ref", id))
	}
}

// loadShared reads one shared-handle occurrence back, resolving reference
// ids to the instance constructed at their defining occurrence. Returns
// the *T as an interface, or nil for a nil handle or on error.
func (c *codecCore) loadShared(ctx *ReadContext) interface{} {
	if ctx.HasError() {
		return nil
	}
	s := ctx.sharedSession()
	id := ctx.readUint("ref")
	if ctx.HasError() || id == 0 {
		return nil
	}
	if !ctx.readBool("def") {
		if ctx.HasError() {
			return nil
		}
		h, ok := s.readRefs[id]
		if !ok {
			ctx.SetError(DeserializationErrorf("shared reference %d of %s is used before its definition", id, c.name))
			return nil
		}
		return h
	}
	view := c.loadView(ctx)
	if ctx.HasError() {
		return nil
	}
	p, err := c.constructNew(view)
	if err != nil {
		ctx.SetError(err)
		return nil
	}
	h := p.Interface()
	s.readRefs[id] = h
	return h
}
