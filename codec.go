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

	"github.com/samber/lo"
	"github.com/spaolacci/murmur3"
)

// TypeKind classifies how a type participates in the protocol.
type TypeKind uint8

const (
	// Concrete types expose the full Serialize/Deserialize surface.
	Concrete TypeKind = iota

	// DataOnly types contribute fields to a hierarchy's composition but
	// expose no standalone entry points of their own.
	DataOnly

	// AbstractRoot types anchor a polymorphic hierarchy; like DataOnly
	// they have no standalone entry points, and they additionally may
	// omit a construct callback entirely.
	AbstractRoot

	// Shared types are serialized exclusively through shared handles
	// inside a Session; direct value serialization is forbidden.
	Shared
)

func (k TypeKind) String() string {
	switch k {
	case Concrete:
		return "concrete"
	case DataOnly:
		return "data-only"
	case AbstractRoot:
		return "abstract-root"
	case Shared:
		return "shared"
	}
	return "unknown"
}

// FinalConstructor is the uniform completion hook: when implemented (use a
// pointer receiver to observe mutations), it runs immediately after
// construction on both paths. Regular constructors invoke it through
// RunFinalConstruct; the deserialization path invokes it automatically.
type FinalConstructor interface {
	FinalConstruct()
}

// DeserializeFinalConstructor is the deserialization-only completion
// hook; it runs before FinalConstruct, and only on the deserialization
// path.
type DeserializeFinalConstructor interface {
	DeserializeFinalConstruct()
}

// RunFinalConstruct invokes the FinalConstruct hook if v implements it.
// Type authors call this from their own constructor functions so the hook
// fires uniformly regardless of which path created the instance.
func RunFinalConstruct(v interface{}) {
	if h, ok := v.(FinalConstructor); ok {
		h.FinalConstruct()
	}
}

// AnyCodec is the type-erased face of a Codec, used where codecs of
// different types compose: base bindings, nested fields and the
// polymorphic registry.
type AnyCodec interface {
	Name() string
	TypeKind() TypeKind
	TypeHash() uint32
	GoType() reflect.Type

	core() *codecCore
}

// TypeSpec is the declarative member/base list a type author supplies:
// the tag name, the protocol classification, the direct bases and fields
// in declaration order, and the construct callback standing in for the
// type's private aggregate-consuming constructor.
type TypeSpec[T any] struct {
	// Name is the default archive tag; scrubbed before use. Defaults to
	// the Go type name.
	Name string

	Kind TypeKind

	// Bases lists the direct bases in declaration order.
	Bases []Base

	// Fields lists the serialized members in declaration order.
	Fields []Field

	// Construct consumes a populated view and produces the fully-formed,
	// invariant-preserving instance in one step. It is the only way a
	// deserialized T comes into existence; no default constructor is ever
	// required. Required for Concrete and Shared types.
	Construct func(*DeserializeView) (T, error)
}

// codecCore is the type-erased protocol state shared by Codec[T] and the
// composition paths.
type codecCore struct {
	name   string
	kind   TypeKind
	hash   uint32
	goType reflect.Type

	bases  []Base
	fields []Field

	constructAny func(*DeserializeView) (interface{}, error)

	facade AnyCodec
}

// Codec carries the generated protocol triple for one type: the view
// shapes, the Pod wrapper, and the entry points.
type Codec[T any] struct {
	c *codecCore
}

// NewCodec validates a TypeSpec and builds the codec for T.
func NewCodec[T any](spec TypeSpec[T]) (*Codec[T], error) {
	goType := reflect.TypeOf((*T)(nil)).Elem()

	name := spec.Name
	if name == "" {
		name = goType.Name()
	}
	name = ScrubName(name)

	if spec.Kind > Shared {
		return nil, ProtocolErrorf("invalid type kind %d for %s", spec.Kind, name)
	}
	if spec.Construct == nil && (spec.Kind == Concrete || spec.Kind == Shared) {
		return nil, ProtocolErrorf("%s type %s requires a construct callback", spec.Kind, name)
	}

	names := lo.Map(spec.Fields, func(f Field, _ int) string { return f.Name })
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, ProtocolErrorf("type %s declares duplicate field %q", name, dups[0])
	}
	for _, f := range spec.Fields {
		if f.Name == "" {
			return nil, ProtocolErrorf("type %s declares a field with an empty name", name)
		}
		if ScrubName(f.Name) != f.Name {
			return nil, ProtocolErrorf("field name %q of %s is not archive-legal", f.Name, name)
		}
		if f.kind != FieldPrimitive && f.codec == nil {
			return nil, ProtocolErrorf("nested field %q of %s has no codec", f.Name, name)
		}
		if f.kind == FieldShared && f.codec.kind != Shared {
			return nil, ProtocolErrorf("shared field %q of %s references %s type %s; SharedField requires Kind Shared",
				f.Name, name, f.codec.kind, f.codec.name)
		}
		if (f.kind == FieldNested || f.kind == FieldNestedPtr) && f.codec.kind == Shared {
			return nil, ProtocolErrorf("field %q of %s embeds shared type %s by value; declare it with SharedField",
				f.Name, name, f.codec.name)
		}
	}
	for i, b := range spec.Bases {
		if b.codec == nil {
			return nil, ProtocolErrorf("base %d of %s has no codec", i, name)
		}
	}

	core := &codecCore{
		name:   name,
		kind:   spec.Kind,
		hash:   murmur3.Sum32([]byte(name)),
		goType: goType,
		bases:  spec.Bases,
		fields: spec.Fields,
	}
	if spec.Construct != nil {
		construct := spec.Construct
		core.constructAny = func(d *DeserializeView) (interface{}, error) {
			return construct(d)
		}
	}

	c := &Codec[T]{c: core}
	core.facade = c
	return c, nil
}

// MustCodec is NewCodec for package-level codec variables; it panics on a
// defective spec.
func MustCodec[T any](spec TypeSpec[T]) *Codec[T] {
	c, err := NewCodec(spec)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Codec[T]) Name() string         { return c.c.name }
func (c *Codec[T]) TypeKind() TypeKind   { return c.c.kind }
func (c *Codec[T]) TypeHash() uint32     { return c.c.hash }
func (c *Codec[T]) GoType() reflect.Type { return c.c.goType }
func (c *Codec[T]) core() *codecCore     { return c.c }

// PodOf builds a save-mode Pod from a live instance.
func (c *Codec[T]) PodOf(v T) *Pod {
	return c.c.newSavePod(v)
}

// EmptyPod builds a load-mode Pod whose view the archive populates.
func (c *Codec[T]) EmptyPod() *Pod {
	return &Pod{codec: c.c, mode: podLoad, load: &DeserializeView{codec: c.c}}
}

// checkEntryPoints rejects standalone serialization for kinds that do not
// expose it.
func (c *codecCore) checkEntryPoints() error {
	switch c.kind {
	case DataOnly, AbstractRoot:
		return ProtocolErrorf("%s type %s has no standalone serialization entry points", c.kind, c.name)
	case Shared:
		return ProtocolErrorf("type %s is serialized exclusively through shared handles; use SerializeShared", c.name)
	}
	return nil
}

func (c *codecCore) tagOr(tag []string) string {
	if len(tag) > 0 && tag[0] != "" {
		return tag[0]
	}
	return c.name
}

// Serialize writes v into the archive as a named value. The default tag
// is the codec's scrubbed type name. The writer is not flushed; callers
// finalizing an archive use SerializeTo or flush explicitly.
func (c *Codec[T]) Serialize(w ArchiveWriter, v T, tag ...string) error {
	if err := c.c.checkEntryPoints(); err != nil {
		return err
	}
	ctx := newWriteContext(w, nil)
	pod := c.c.newSavePod(v)
	ctx.begin(c.c.tagOr(tag))
	pod.saveBody(ctx)
	ctx.end()
	return ctx.Err()
}

// Deserialize reads a named value and constructs a new T through the
// construct callback. The instance either comes back fully formed or not
// at all; a half-initialized T is never observable.
func (c *Codec[T]) Deserialize(r ArchiveReader, tag ...string) (T, error) {
	var zero T
	if err := c.c.checkEntryPoints(); err != nil {
		return zero, err
	}
	ctx := newReadContext(r, nil)
	ctx.begin(c.c.tagOr(tag))
	view := c.c.loadView(ctx)
	ctx.end()
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	v, err := c.c.constructValue(view)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// SerializeTo serializes v through enc into dst and finalizes the
// archive.
func (c *Codec[T]) SerializeTo(enc Encoding, dst io.Writer, v T, tag ...string) error {
	w := enc.NewWriter(dst)
	if err := c.Serialize(w, v, tag...); err != nil {
		return err
	}
	return FromError(w.Flush())
}

// DeserializeFrom deserializes a T through enc from src.
func (c *Codec[T]) DeserializeFrom(enc Encoding, src io.Reader, tag ...string) (T, error) {
	r, err := enc.NewReader(src)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Deserialize(r, tag...)
}

// SerializedSize reports the exact number of bytes a serialization of v
// under enc produces, measured by a real pass into a byte-counting
// discard sink. Stable for a given encoding and value.
func (c *Codec[T]) SerializedSize(enc Encoding, v T, tag ...string) (int, error) {
	sink := &countingWriter{}
	if err := c.SerializeTo(enc, sink, v, tag...); err != nil {
		return 0, err
	}
	return sink.n, nil
}

// ConstructValue consumes a populated view belonging to this codec and
// produces a T. Used by derived construct callbacks to build base
// sub-objects (bases before members) and by custom construction code.
func (c *Codec[T]) ConstructValue(d *DeserializeView) (T, error) {
	v, err := c.c.constructValue(d)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// ----------------------------------------------------------------------
// Save path
// ----------------------------------------------------------------------

func (c *codecCore) newSavePod(v interface{}) *Pod {
	return &Pod{codec: c, mode: podSave, save: c.newSaveView(v)}
}

// newSaveView projects a live instance into the wire-facing aggregate:
// base views in declaration order, then field projections.
func (c *codecCore) newSaveView(v interface{}) *SerializeView {
	sv := &SerializeView{codec: c}
	for _, b := range c.bases {
		sv.bases = append(sv.bases, b.codec.newSaveView(b.get(v)))
	}
	for i := range c.fields {
		f := &c.fields[i]
		switch f.kind {
		case FieldPrimitive:
			sv.values = append(sv.values, f.get(v))
		case FieldNested:
			sv.values = append(sv.values, f.codec.newSaveView(f.get(v)))
		case FieldNestedPtr:
			pointee, ok := f.getPtr(v)
			if !ok {
				sv.values = append(sv.values, nil)
			} else {
				sv.values = append(sv.values, f.codec.newSaveView(pointee))
			}
		case FieldShared:
			// The handle itself, kept live for identity within the pass.
			handle, ok := f.getPtr(v)
			if !ok {
				sv.values = append(sv.values, nil)
			} else {
				sv.values = append(sv.values, handle)
			}
		}
	}
	return sv
}

func (c *codecCore) saveBody(ctx *WriteContext, sv *SerializeView) {
	if ctx.HasError() {
		return
	}
	for i, b := range c.bases {
		ctx.begin(b.codec.name)
		b.codec.saveBody(ctx, sv.bases[i])
		ctx.end()
	}
	for i := range c.fields {
		f := &c.fields[i]
		switch f.kind {
		case FieldPrimitive:
			writePrimitive(ctx, f, sv.values[i])
		case FieldNested:
			ctx.begin(f.Name)
			f.codec.saveBody(ctx, sv.values[i].(*SerializeView))
			ctx.end()
		case FieldNestedPtr:
			ctx.begin(f.Name)
			present := sv.values[i] != nil
			ctx.writeBool("present", present)
			if present {
				f.codec.saveBody(ctx, sv.values[i].(*SerializeView))
			}
			ctx.end()
		case FieldShared:
			ctx.begin(f.Name)
			f.codec.saveShared(ctx, sv.values[i])
			ctx.end()
		}
	}
}

func writePrimitive(ctx *WriteContext, f *Field, v interface{}) {
	switch f.prim {
	case primBool:
		ctx.writeBool(f.Name, v.(bool))
	case primInt:
		ctx.writeInt(f.Name, v.(int64))
	case primUint:
		ctx.writeUint(f.Name, v.(uint64))
	case primFloat:
		ctx.writeFloat(f.Name, v.(float64))
	case primString:
		ctx.writeString(f.Name, v.(string))
	case primBytes:
		ctx.writeBytes(f.Name, v.([]byte))
	}
}

// ----------------------------------------------------------------------
// Load path
// ----------------------------------------------------------------------

// loadView reads the aggregate off the archive: base sub-views first in
// declaration order, then field slots. Nested members are constructed
// through their own codecs as they are read, so by the time the owner's
// construct callback runs every slot already holds a fully-formed value.
func (c *codecCore) loadView(ctx *ReadContext) *DeserializeView {
	d := &DeserializeView{codec: c}
	for _, b := range c.bases {
		ctx.begin(b.codec.name)
		d.bases = append(d.bases, b.codec.loadView(ctx))
		ctx.end()
	}
	for i := range c.fields {
		f := &c.fields[i]
		switch f.kind {
		case FieldPrimitive:
			d.values = append(d.values, readPrimitive(ctx, f))
		case FieldNested:
			ctx.begin(f.Name)
			sub := f.codec.loadView(ctx)
			ctx.end()
			d.values = append(d.values, c.constructMember(ctx, f, sub))
		case FieldNestedPtr:
			ctx.begin(f.Name)
			if !ctx.readBool("present") {
				d.values = append(d.values, f.nilPtr)
				ctx.end()
				continue
			}
			sub := f.codec.loadView(ctx)
			ctx.end()
			member := c.constructMember(ctx, f, sub)
			if member == nil {
				d.values = append(d.values, f.nilPtr)
			} else {
				d.values = append(d.values, f.wrap(member))
			}
		case FieldShared:
			ctx.begin(f.Name)
			h := f.codec.loadShared(ctx)
			ctx.end()
			if h == nil {
				d.values = append(d.values, f.nilPtr)
			} else {
				d.values = append(d.values, h)
			}
		}
	}
	if !ctx.HasError() {
		d.state = viewPopulated
	}
	return d
}

func (c *codecCore) constructMember(ctx *ReadContext, f *Field, sub *DeserializeView) interface{} {
	if ctx.HasError() {
		return nil
	}
	member, err := f.codec.constructValue(sub)
	if err != nil {
		ctx.SetError(err)
		return nil
	}
	return member
}

func readPrimitive(ctx *ReadContext, f *Field) interface{} {
	switch f.prim {
	case primBool:
		return ctx.readBool(f.Name)
	case primInt:
		return ctx.readInt(f.Name)
	case primUint:
		return ctx.readUint(f.Name)
	case primFloat:
		return ctx.readFloat(f.Name)
	case primString:
		return ctx.readString(f.Name)
	case primBytes:
		return ctx.readBytes(f.Name)
	}
	return nil
}

// ----------------------------------------------------------------------
// Construction
// ----------------------------------------------------------------------

// constructNew consumes a populated view: the construct callback runs
// while the view is still accessible, the state flips to consumed, and
// the completion hooks fire against a fresh heap instance so pointer
// receivers observe the final address. Returns the *T as a reflect.Value.
func (c *codecCore) constructNew(d *DeserializeView) (reflect.Value, error) {
	if d == nil || d.codec != c {
		return reflect.Value{}, ProtocolErrorf("view does not belong to codec %s", c.name)
	}
	if err := d.consumeCheck(); err != nil {
		return reflect.Value{}, err
	}
	if c.constructAny == nil {
		return reflect.Value{}, ProtocolErrorf("%s type %s cannot be constructed", c.kind, c.name)
	}
	v, err := c.constructAny(d)
	if err != nil {
		return reflect.Value{}, markForeign(err, ErrDeserialization)
	}
	d.state = viewConsumed

	p := reflect.New(c.goType)
	if rv := reflect.ValueOf(v); rv.IsValid() {
		p.Elem().Set(rv)
	}
	if h, ok := p.Interface().(DeserializeFinalConstructor); ok {
		h.DeserializeFinalConstruct()
	}
	if h, ok := p.Interface().(FinalConstructor); ok {
		h.FinalConstruct()
	}
	return p, nil
}

func (c *codecCore) constructValue(d *DeserializeView) (interface{}, error) {
	p, err := c.constructNew(d)
	if err != nil {
		return nil, err
	}
	return p.Elem().Interface(), nil
}
