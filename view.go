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

// viewState tracks the lifecycle of a DeserializeView. The view starts
// Empty, becomes Populated once the archive pass completes without error,
// and becomes Consumed when a construct call hands it to the type's
// construct callback. Every access checks the state; consuming twice is a
// protocol-misuse error.
type viewState uint8

const (
	viewEmpty viewState = iota
	viewPopulated
	viewConsumed
)

func (s viewState) String() string {
	switch s {
	case viewEmpty:
		return "empty"
	case viewPopulated:
		return "populated"
	case viewConsumed:
		return "consumed"
	}
	return "unknown"
}

// SerializeView is the ephemeral, non-owning aggregate projected from a
// live instance for the duration of one save pass: one nested base view
// per direct base in declaration order, then one read-only projection per
// field. It is created, walked once, and dropped; it is never reused
// across save passes.
type SerializeView struct {
	codec *codecCore

	bases []*SerializeView

	// values holds, per field: the projected primitive, a nested
	// *SerializeView, or nil for an absent owning pointer.
	values []interface{}

	// originalBase is the set-once back-reference to the base-typed handle
	// a polymorphic save started from.
	originalBase    interface{}
	hasOriginalBase bool
}

// Base returns the nested view for the i-th declared base.
func (v *SerializeView) Base(i int) *SerializeView {
	if i < 0 || i >= len(v.bases) {
		protocolPanicf("serialize view of %s has %d bases; index %d is out of range",
			v.codec.name, len(v.bases), i)
	}
	return v.bases[i]
}

// DeserializeView is the owning, mutable aggregate populated by the
// archive during one load pass: one nested base view per direct base,
// then one slot per field. Primitive slots hold the raw archive value;
// nested slots hold the already-constructed member; pointer slots hold
// the re-wrapped pointee or a typed nil.
//
// A populated view is consumed exactly once, by the codec's construct
// path. Accessors are valid only while the view is populated.
type DeserializeView struct {
	codec *codecCore
	state viewState

	bases  []*DeserializeView
	values []interface{}
}

func (v *DeserializeView) checkPopulated(op string) {
	if v.state != viewPopulated {
		protocolPanicf("%s on a deserialize view of %s that is %s", op, v.codec.name, v.state)
	}
}

// Base returns the sub-view for the i-th declared base. The sub-view is
// handed to the base codec's ConstructValue by the owner's construct
// callback, honoring base-before-member construction order.
func (v *DeserializeView) Base(i int) *DeserializeView {
	v.checkPopulated("Base")
	if i < 0 || i >= len(v.bases) {
		protocolPanicf("deserialize view of %s has %d bases; index %d is out of range",
			v.codec.name, len(v.bases), i)
	}
	return v.bases[i]
}

// Field returns the populated slot for the named field.
func (v *DeserializeView) Field(name string) interface{} {
	v.checkPopulated("Field")
	for i := range v.codec.fields {
		if v.codec.fields[i].Name == name {
			return v.values[i]
		}
	}
	protocolPanicf("type %s has no serialized field %q", v.codec.name, name)
	return nil
}

// FieldValue returns the populated slot for the named field as V.
// Primitive slots hold bool, int64, uint64, float64, string or []byte;
// nested slots hold the member type; pointer slots hold the pointer type.
func FieldValue[V any](v *DeserializeView, name string) V {
	raw := v.Field(name)
	if raw == nil {
		var zero V
		return zero
	}
	out, ok := raw.(V)
	if !ok {
		protocolPanicf("field %q of %s holds %T, not the requested type", name, v.codec.name, raw)
	}
	return out
}

// consumeCheck validates that the view can be consumed, without changing
// state; the construct path flips the state after the user callback ran.
func (v *DeserializeView) consumeCheck() error {
	switch v.state {
	case viewPopulated:
		return nil
	case viewConsumed:
		return ProtocolErrorf("deserialize view of %s has already been consumed or never existed", v.codec.name)
	default:
		return ProtocolErrorf("deserialize view of %s was never populated", v.codec.name)
	}
}
