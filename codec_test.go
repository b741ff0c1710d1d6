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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaolacci/murmur3"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Fixtures
// ============================================================================

// span is the canonical immutable fixture: both ends are private, the
// only public constructor enforces lo <= hi, and there is no meaningful
// zero value.
type span struct {
	lo, hi int64
}

func newSpan(lo, hi int64) (span, error) {
	if hi < lo {
		return span{}, errors.Newf("span bounds out of order: [%d, %d]", lo, hi)
	}
	return span{lo: lo, hi: hi}, nil
}

var spanCodec = MustCodec(TypeSpec[span]{
	Name: "Span",
	Kind: Concrete,
	Fields: []Field{
		IntField("lo", func(s span) int64 { return s.lo }),
		IntField("hi", func(s span) int64 { return s.hi }),
	},
	Construct: func(d *DeserializeView) (span, error) {
		return newSpan(FieldValue[int64](d, "lo"), FieldValue[int64](d, "hi"))
	},
})

// loadSpanView serializes s and reads it back into a populated view,
// stopping short of construction.
func loadSpanView(t *testing.T, s span) *DeserializeView {
	t.Helper()
	w := newMemWriter()
	require.NoError(t, spanCodec.Serialize(w, s))
	ctx := newReadContext(w.reader(), nil)
	ctx.begin(spanCodec.Name())
	view := spanCodec.c.loadView(ctx)
	ctx.end()
	require.NoError(t, ctx.Err())
	return view
}

// ============================================================================
// Codec construction
// ============================================================================

func TestNewCodecDefaultsToGoTypeName(t *testing.T) {
	c, err := NewCodec(TypeSpec[span]{
		Kind:      Concrete,
		Construct: func(*DeserializeView) (span, error) { return span{}, nil },
	})
	require.NoError(t, err)
	require.Equal(t, "span", c.Name())
}

func TestNewCodecScrubsName(t *testing.T) {
	c, err := NewCodec(TypeSpec[span]{
		Name:      "legacy::Span",
		Kind:      Concrete,
		Construct: func(*DeserializeView) (span, error) { return span{}, nil },
	})
	require.NoError(t, err)
	require.Equal(t, "Span", c.Name())
}

func TestCodecTypeHash(t *testing.T) {
	require.Equal(t, murmur3.Sum32([]byte("Span")), spanCodec.TypeHash())
}

func TestNewCodecRejectsDuplicateFields(t *testing.T) {
	_, err := NewCodec(TypeSpec[span]{
		Kind: Concrete,
		Fields: []Field{
			IntField("lo", func(s span) int64 { return s.lo }),
			IntField("lo", func(s span) int64 { return s.hi }),
		},
		Construct: func(*DeserializeView) (span, error) { return span{}, nil },
	})
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))
	require.ErrorContains(t, err, "duplicate field")
}

func TestNewCodecRejectsIllegalFieldNames(t *testing.T) {
	_, err := NewCodec(TypeSpec[span]{
		Kind:      Concrete,
		Fields:    []Field{IntField("low bound", func(s span) int64 { return s.lo })},
		Construct: func(*DeserializeView) (span, error) { return span{}, nil },
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "not archive-legal")

	_, err = NewCodec(TypeSpec[span]{
		Kind:      Concrete,
		Fields:    []Field{IntField("", func(s span) int64 { return s.lo })},
		Construct: func(*DeserializeView) (span, error) { return span{}, nil },
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "empty name")
}

func TestNewCodecRequiresConstruct(t *testing.T) {
	_, err := NewCodec(TypeSpec[span]{Kind: Concrete})
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))

	_, err = NewCodec(TypeSpec[span]{Kind: Shared})
	require.Error(t, err)

	// Abstract roots never construct, so the callback is optional.
	_, err = NewCodec(TypeSpec[span]{Kind: AbstractRoot})
	require.NoError(t, err)
}

func TestMustCodecPanicsOnDefectiveSpec(t *testing.T) {
	require.Panics(t, func() {
		MustCodec(TypeSpec[span]{Kind: Concrete})
	})
}

// ============================================================================
// Entry points
// ============================================================================

func TestDataOnlyHasNoEntryPoints(t *testing.T) {
	c, err := NewCodec(TypeSpec[span]{Kind: DataOnly})
	require.NoError(t, err)

	err = c.Serialize(newMemWriter(), span{})
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))

	_, err = c.Deserialize(newMemWriter().reader())
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))
}

func TestSharedRejectsDirectSerialization(t *testing.T) {
	c, err := NewCodec(TypeSpec[span]{
		Kind:      Shared,
		Construct: func(*DeserializeView) (span, error) { return span{}, nil },
	})
	require.NoError(t, err)

	err = c.Serialize(newMemWriter(), span{})
	require.Error(t, err)
	require.ErrorContains(t, err, "SerializeShared")
}

// ============================================================================
// Round trip and construction
// ============================================================================

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	s, err := newSpan(-3, 41)
	require.NoError(t, err)

	w := newMemWriter()
	require.NoError(t, spanCodec.Serialize(w, s))

	got, err := spanCodec.Deserialize(w.reader())
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestDeserializeRunsConstructValidation(t *testing.T) {
	// A producer-side bug wrote bounds out of order; the construct
	// callback must refuse, so the invalid instance is never observable.
	w := newMemWriter()
	require.NoError(t, spanCodec.Serialize(w, span{lo: 10, hi: 2}))

	_, err := spanCodec.Deserialize(w.reader())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDeserialization)
	require.ErrorContains(t, err, "out of order")
}

func TestDeserializeMissingFieldFails(t *testing.T) {
	w := newMemWriter()
	require.NoError(t, w.BeginElement("Span"))
	require.NoError(t, w.WriteInt("lo", 1))
	require.NoError(t, w.EndElement())

	_, err := spanCodec.Deserialize(w.reader())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDeserialization)
}

func TestCustomTagOverridesDefault(t *testing.T) {
	s, err := newSpan(1, 2)
	require.NoError(t, err)

	w := newMemWriter()
	require.NoError(t, spanCodec.Serialize(w, s, "window"))

	// The default tag is absent, the custom one resolves.
	_, err = spanCodec.Deserialize(w.reader())
	require.Error(t, err)

	got, err := spanCodec.Deserialize(w.reader(), "window")
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestConstructValueConsumesExactlyOnce(t *testing.T) {
	s, err := newSpan(5, 9)
	require.NoError(t, err)
	view := loadSpanView(t, s)

	got, err := spanCodec.ConstructValue(view)
	require.NoError(t, err)
	require.Equal(t, s, got)

	_, err = spanCodec.ConstructValue(view)
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))
	require.ErrorContains(t, err, "already been consumed or never existed")
}

func TestConstructValueRejectsForeignView(t *testing.T) {
	other := MustCodec(TypeSpec[span]{
		Name:      "OtherSpan",
		Kind:      Concrete,
		Construct: func(*DeserializeView) (span, error) { return span{}, nil },
	})
	view := loadSpanView(t, span{lo: 1, hi: 2})

	_, err := other.ConstructValue(view)
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))
}
