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
	"reflect"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// registryEntry associates one concrete type with its codec, its wire
// discriminator, and the full set of base interfaces it may be serialized
// through. The ancestor set subsumes the original declare-one-base-plus-
// additional-casts scheme: intermediate data-only bases work by simply
// registering the concrete type against every interface that matters.
type registryEntry struct {
	name      string
	hash      uint32
	codec     *codecCore
	ancestors []reflect.Type
}

// polymorphicRegistry is the one process-wide shared resource in the
// protocol. Registration is explicit and idempotent, guarded by a lock so
// concrete types racing to self-register on first use in a multi-threaded
// host stay safe; every other part of the protocol is call-and-return on
// the calling goroutine.
type polymorphicRegistry struct {
	mu     sync.RWMutex
	byName map[string]*registryEntry
	byType map[reflect.Type]*registryEntry
	logger *zap.Logger

	touched atomic.Bool
}

var registry = &polymorphicRegistry{
	byName: make(map[string]*registryEntry),
	byType: make(map[reflect.Type]*registryEntry),
	logger: zap.NewNop(),
}

// SetRegistryLogger installs a logger for registration events and
// unregistered-type diagnostics. Nop by default.
func SetRegistryLogger(l *zap.Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	registry.logger = l
}

// RegisterPolymorphic associates concrete type T with base interface B in
// the process-wide registry, enabling serialization of a T through a
// handle typed as B. Must run before the first polymorphic use of T;
// doing it from the package init of the file declaring T keeps the
// define-once discipline of the original scheme without link-time tricks.
//
// Registration is idempotent. Registering T against a further interface
// adds that interface to T's ancestor set; this is how a concrete type
// under a data-only intermediate also becomes reachable through the
// intermediate's interface. Conflicting registrations (two types under
// one discriminator) are errors.
func RegisterPolymorphic[T any, B any](c *Codec[T]) error {
	baseType := reflect.TypeOf((*B)(nil)).Elem()
	if baseType.Kind() != reflect.Interface {
		return ProtocolErrorf("polymorphic base %v must be an interface type", baseType)
	}
	core := c.c
	if core.kind == DataOnly || core.kind == AbstractRoot {
		return ProtocolErrorf("%s type %s cannot be registered as a polymorphic concrete type", core.kind, core.name)
	}
	if !core.goType.Implements(baseType) && !reflect.PtrTo(core.goType).Implements(baseType) {
		return ProtocolErrorf("type %v does not implement polymorphic base %v", core.goType, baseType)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	entry := registry.byType[core.goType]
	if entry == nil {
		if other, ok := registry.byName[core.name]; ok && other.codec != core {
			return ProtocolErrorf("discriminator %q is already registered for %v", core.name, other.codec.goType)
		}
		entry = &registryEntry{name: core.name, hash: core.hash, codec: core}
		registry.byName[core.name] = entry
		registry.byType[core.goType] = entry
		registry.touched.Store(true)
	} else if entry.codec != core {
		return ProtocolErrorf("type %v is already registered with a different codec", core.goType)
	}
	if !lo.Contains(entry.ancestors, baseType) {
		entry.ancestors = append(entry.ancestors, baseType)
		registry.logger.Debug("registered polymorphic type",
			zap.String("type", core.goType.String()),
			zap.String("discriminator", entry.name),
			zap.String("base", baseType.String()))
	}
	return nil
}

func (r *polymorphicRegistry) lookupType(t reflect.Type) *registryEntry {
	if !r.touched.Load() {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byType[t]; ok {
		return e
	}
	if t != nil && t.Kind() == reflect.Ptr {
		return r.byType[t.Elem()]
	}
	return nil
}

func (r *polymorphicRegistry) lookupName(name string) *registryEntry {
	if !r.touched.Load() {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

func (e *registryEntry) hasAncestor(t reflect.Type) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return lo.Contains(e.ancestors, t)
}

func ptrTag[B any](tag []string) string {
	if len(tag) > 0 && tag[0] != "" {
		return tag[0]
	}
	baseType := reflect.TypeOf((*B)(nil)).Elem()
	return ScrubName(baseType.Name() + "Ptr")
}

// SerializePtr serializes a value held through base interface B: the wire
// carries the concrete type's discriminator followed by its pod, so the
// load side can resolve the concrete codec without knowing it statically.
// The pod records the original base handle before writing (set-once).
//
// Using a dynamic type that never registered is a fatal protocol error,
// diagnosed immediately.
func SerializePtr[B any](w ArchiveWriter, v B, tag ...string) error {
	baseType := reflect.TypeOf((*B)(nil)).Elem()
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return SerializationErrorf("cannot serialize a nil %v handle", baseType)
	}
	entry := registry.lookupType(rv.Type())
	if entry == nil {
		registry.mu.RLock()
		logger := registry.logger
		registry.mu.RUnlock()
		logger.Error("polymorphic serialization of unregistered type",
			zap.String("type", rv.Type().String()),
			zap.String("base", baseType.String()))
		return ProtocolErrorf("type %v has not been registered for polymorphic serialization", rv.Type())
	}
	if !entry.hasAncestor(baseType) {
		return ProtocolErrorf("type %v is not registered under base %v", rv.Type(), baseType)
	}

	obj := rv
	if obj.Kind() == reflect.Ptr && obj.Type().Elem() == entry.codec.goType {
		obj = obj.Elem()
	}
	pod := entry.codec.newSavePod(obj.Interface())
	pod.SetOriginalBase(v)

	ctx := newWriteContext(w, nil)
	ctx.begin(ptrTag[B](tag))
	ctx.writeString("type", entry.name)
	ctx.writeUint("typeHash", uint64(entry.hash))
	pod.saveBody(ctx)
	ctx.end()
	return ctx.Err()
}

// DeserializePtr reads a polymorphic value back through base interface B:
// the discriminator picks the concrete codec out of the registry, the pod
// is populated, and ConstructPtr hands back an owning handle typed as B
// whose dynamic type is the serialized concrete type.
func DeserializePtr[B any](r ArchiveReader, tag ...string) (B, error) {
	var zero B
	baseType := reflect.TypeOf((*B)(nil)).Elem()

	ctx := newReadContext(r, nil)
	ctx.begin(ptrTag[B](tag))
	name := ctx.readString("type")
	hash := ctx.readUint("typeHash")
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	entry := registry.lookupName(name)
	if entry == nil {
		return zero, DeserializationErrorf("unknown polymorphic type %q", name)
	}
	if uint32(hash) != entry.hash {
		return zero, DeserializationErrorf("type hash mismatch for %q: archive has %#x, registry has %#x",
			name, hash, entry.hash)
	}
	if !entry.hasAncestor(baseType) {
		return zero, DeserializationErrorf("type %q is not registered under base %v", name, baseType)
	}
	view := entry.codec.loadView(ctx)
	ctx.end()
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	p, err := entry.codec.constructNew(view)
	if err != nil {
		return zero, err
	}
	if b, ok := p.Elem().Interface().(B); ok {
		return b, nil
	}
	if b, ok := p.Interface().(B); ok {
		return b, nil
	}
	return zero, DeserializationErrorf("constructed %v does not satisfy base %v", entry.codec.goType, baseType)
}

// SerializedPtrSize reports the exact byte count of a polymorphic
// serialization of v under enc, via a real pass into a counting sink.
func SerializedPtrSize[B any](enc Encoding, v B, tag ...string) (int, error) {
	sink := &countingWriter{}
	w := enc.NewWriter(sink)
	if err := SerializePtr[B](w, v, tag...); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, FromError(err)
	}
	return sink.n, nil
}

// SerializePtrTo serializes a polymorphic value through enc into dst and
// finalizes the archive.
func SerializePtrTo[B any](enc Encoding, dst io.Writer, v B, tag ...string) error {
	w := enc.NewWriter(dst)
	if err := SerializePtr[B](w, v, tag...); err != nil {
		return err
	}
	return FromError(w.Flush())
}

// DeserializePtrFrom deserializes a polymorphic value through enc from
// src.
func DeserializePtrFrom[B any](enc Encoding, src io.Reader, tag ...string) (B, error) {
	r, err := enc.NewReader(src)
	if err != nil {
		var zero B
		return zero, err
	}
	return DeserializePtr[B](r, tag...)
}
