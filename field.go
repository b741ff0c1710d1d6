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

// FieldKind classifies how a member is projected into the wire-facing
// aggregate. The projection rule, applied in order:
//
//  1. Member type participates in the protocol and is not pointer-like:
//     nest its own view recursively (FieldNested).
//  2. Member is an owning pointer to a participating type: nest the
//     pointee's view; deserialization materializes the pointee and
//     re-wraps it in the same ownership kind (FieldNestedPtr).
//  3. Member is a shared handle to a type declared with Kind Shared:
//     write a session-scoped reference, with the payload carried only by
//     the defining occurrence (FieldShared).
//  4. Otherwise the member is an opaque primitive forwarded verbatim to
//     the archive by name (FieldPrimitive).
type FieldKind uint8

const (
	FieldPrimitive FieldKind = iota
	FieldNested
	FieldNestedPtr
	FieldShared
)

// primKind identifies the archive primitive a FieldPrimitive maps to.
type primKind uint8

const (
	primNone primKind = iota
	primBool
	primInt
	primUint
	primFloat
	primString
	primBytes
)

// Field describes one serialized member of a type: its tag name, its
// projection kind, and the typed accessors captured by the generic
// constructors below. Fields are declared in member declaration order and
// visited in that order on both paths.
type Field struct {
	Name string

	kind  FieldKind
	prim  primKind
	codec *codecCore

	// get projects the member out of a live owner (save path).
	get func(owner interface{}) interface{}

	// getPtr projects a pointer-like member together with its presence:
	// the pointee value for FieldNestedPtr, the handle itself for
	// FieldShared.
	getPtr func(owner interface{}) (interface{}, bool)

	// wrap re-wraps a constructed pointee in the owning pointer kind.
	wrap func(pointee interface{}) interface{}

	// nilPtr is the typed nil stored in the view when the pointer was
	// absent on the wire.
	nilPtr interface{}
}

// BoolField declares a primitive bool member.
func BoolField[T any](name string, get func(T) bool) Field {
	return Field{
		Name: name,
		kind: FieldPrimitive,
		prim: primBool,
		get:  func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// IntField declares a primitive signed-integer member. Narrower integer
// members widen to int64 here and narrow again in the construct callback.
func IntField[T any](name string, get func(T) int64) Field {
	return Field{
		Name: name,
		kind: FieldPrimitive,
		prim: primInt,
		get:  func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// UintField declares a primitive unsigned-integer member.
func UintField[T any](name string, get func(T) uint64) Field {
	return Field{
		Name: name,
		kind: FieldPrimitive,
		prim: primUint,
		get:  func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// FloatField declares a primitive floating-point member.
func FloatField[T any](name string, get func(T) float64) Field {
	return Field{
		Name: name,
		kind: FieldPrimitive,
		prim: primFloat,
		get:  func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// StringField declares a primitive string member.
func StringField[T any](name string, get func(T) string) Field {
	return Field{
		Name: name,
		kind: FieldPrimitive,
		prim: primString,
		get:  func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// BytesField declares a primitive byte-slice member.
func BytesField[T any](name string, get func(T) []byte) Field {
	return Field{
		Name: name,
		kind: FieldPrimitive,
		prim: primBytes,
		get:  func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// NestedField declares a member whose type participates in the protocol
// itself; its view nests recursively and deserialization constructs the
// member through its own codec before the owner is built.
func NestedField[T any, S any](name string, c *Codec[S], get func(T) S) Field {
	return Field{
		Name:  name,
		kind:  FieldNested,
		codec: c.c,
		get:   func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// PtrField declares an owning-pointer member to a participating type. A
// nil pointer round-trips as nil.
func PtrField[T any, S any](name string, c *Codec[S], get func(T) *S) Field {
	return Field{
		Name:  name,
		kind:  FieldNestedPtr,
		codec: c.c,
		getPtr: func(owner interface{}) (interface{}, bool) {
			p := get(owner.(T))
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		wrap: func(pointee interface{}) interface{} {
			s := pointee.(S)
			return &s
		},
		nilPtr: (*S)(nil),
	}
}

// SharedField declares a member holding a shared handle to a type
// declared with Kind Shared. Handles written within one pass that point
// at the same instance come back aliasing a single reconstructed
// instance; a nil handle round-trips as nil. The member type's codec
// must carry Kind Shared.
func SharedField[T any, S any](name string, c *Codec[S], get func(T) *S) Field {
	return Field{
		Name:  name,
		kind:  FieldShared,
		codec: c.c,
		getPtr: func(owner interface{}) (interface{}, bool) {
			p := get(owner.(T))
			if p == nil {
				return nil, false
			}
			return p, true
		},
		nilPtr: (*S)(nil),
	}
}

// Base binds a direct base of a type to the base type's codec plus the
// projection extracting the base sub-object from a live instance. Bases
// compose in declaration order; no shared or virtual base deduplication
// is attempted.
type Base struct {
	codec *codecCore
	get   func(owner interface{}) interface{}
}

// BaseOf declares a direct base S of type T.
func BaseOf[T any, S any](c *Codec[S], get func(T) S) Base {
	return Base{
		codec: c.c,
		get:   func(owner interface{}) interface{} { return get(owner.(T)) },
	}
}

// Codec returns the base type's codec.
func (b Base) Codec() AnyCodec { return b.codec.facade }
