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

	"github.com/stretchr/testify/require"
)

type blob struct {
	id      string
	payload []byte
}

var blobCodec = MustCodec(TypeSpec[blob]{
	Name: "Blob",
	Kind: Shared,
	Fields: []Field{
		StringField("id", func(b blob) string { return b.id }),
		BytesField("payload", func(b blob) []byte { return b.payload }),
	},
	Construct: func(d *DeserializeView) (blob, error) {
		return blob{
			id:      FieldValue[string](d, "id"),
			payload: FieldValue[[]byte](d, "payload"),
		}, nil
	},
})

func TestSharedAliasingRoundTrip(t *testing.T) {
	one := &blob{id: "one", payload: []byte{1, 2, 3}}
	two := &blob{id: "two", payload: []byte{9}}

	w := newMemWriter()
	ws := NewSession()
	require.NoError(t, SerializeShared(ws, blobCodec, w, one, "first"))
	require.NoError(t, SerializeShared(ws, blobCodec, w, one, "second"))
	require.NoError(t, SerializeShared(ws, blobCodec, w, one, "third"))
	require.NoError(t, SerializeShared(ws, blobCodec, w, (*blob)(nil), "absent"))
	require.NoError(t, SerializeShared(ws, blobCodec, w, two, "other"))

	r := w.reader()
	rs := NewSession()
	h1, err := DeserializeShared(rs, blobCodec, r, "first")
	require.NoError(t, err)
	h2, err := DeserializeShared(rs, blobCodec, r, "second")
	require.NoError(t, err)
	h3, err := DeserializeShared(rs, blobCodec, r, "third")
	require.NoError(t, err)
	h4, err := DeserializeShared(rs, blobCodec, r, "absent")
	require.NoError(t, err)
	h5, err := DeserializeShared(rs, blobCodec, r, "other")
	require.NoError(t, err)

	// Three stored references come back as one instance, not three.
	require.Same(t, h1, h2)
	require.Same(t, h1, h3)
	require.Equal(t, *one, *h1)

	require.Nil(t, h4)

	require.NotSame(t, h1, h5)
	require.Equal(t, *two, *h5)
}

func TestSharedEntryPointsRequireSharedKind(t *testing.T) {
	s := NewSession()

	err := SerializeShared(s, spanCodec, newMemWriter(), &span{lo: 1, hi: 2})
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))

	_, err = DeserializeShared(s, spanCodec, newMemWriter().reader())
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))
}

func TestSharedReferenceBeforeDefinition(t *testing.T) {
	w := newMemWriter()
	require.NoError(t, w.BeginElement("Blob"))
	require.NoError(t, w.WriteUint("ref", 5))
	require.NoError(t, w.WriteBool("def", false))
	require.NoError(t, w.EndElement())

	_, err := DeserializeShared(NewSession(), blobCodec, w.reader())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDeserialization)
	require.ErrorContains(t, err, "before its definition")
}

type blobPair struct {
	label string
	left  *blob
	right *blob
}

var blobPairCodec = MustCodec(TypeSpec[blobPair]{
	Name: "BlobPair",
	Fields: []Field{
		StringField("label", func(p blobPair) string { return p.label }),
		SharedField("left", blobCodec, func(p blobPair) *blob { return p.left }),
		SharedField("right", blobCodec, func(p blobPair) *blob { return p.right }),
	},
	Construct: func(d *DeserializeView) (blobPair, error) {
		return blobPair{
			label: FieldValue[string](d, "label"),
			left:  FieldValue[*blob](d, "left"),
			right: FieldValue[*blob](d, "right"),
		}, nil
	},
})

func TestSharedMembersAliasWithinOnePass(t *testing.T) {
	common := &blob{id: "common", payload: []byte{7}}
	pair := blobPair{label: "aliased", left: common, right: common}

	w := newMemWriter()
	require.NoError(t, blobPairCodec.Serialize(w, pair))

	out, err := blobPairCodec.Deserialize(w.reader())
	require.NoError(t, err)
	require.Equal(t, "aliased", out.label)
	require.Same(t, out.left, out.right)
	require.Equal(t, *common, *out.left)
}

func TestSharedMemberNilHandleRoundTrips(t *testing.T) {
	pair := blobPair{label: "half", left: &blob{id: "only"}}

	w := newMemWriter()
	require.NoError(t, blobPairCodec.Serialize(w, pair))

	out, err := blobPairCodec.Deserialize(w.reader())
	require.NoError(t, err)
	require.Equal(t, "only", out.left.id)
	require.Nil(t, out.right)
}

func TestSharedFieldRequiresSharedKind(t *testing.T) {
	_, err := NewCodec(TypeSpec[blobPair]{
		Name: "BadPair",
		Fields: []Field{
			SharedField("left", spanCodec, func(blobPair) *span { return nil }),
		},
		Construct: func(*DeserializeView) (blobPair, error) { return blobPair{}, nil },
	})
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))
	require.ErrorContains(t, err, "requires Kind Shared")
}

func TestSharedTypeCannotBeEmbeddedByValue(t *testing.T) {
	_, err := NewCodec(TypeSpec[blobPair]{
		Name: "BadEmbed",
		Fields: []Field{
			NestedField("left", blobCodec, func(p blobPair) blob { return *p.left }),
		},
		Construct: func(*DeserializeView) (blobPair, error) { return blobPair{}, nil },
	})
	require.Error(t, err)
	require.True(t, IsProtocolMisuse(err))
	require.ErrorContains(t, err, "SharedField")
}

func TestSharedWriterIdsAreStableWithinSession(t *testing.T) {
	one := &blob{id: "one"}

	w := newMemWriter()
	s := NewSession()
	require.NoError(t, SerializeShared(s, blobCodec, w, one, "a"))
	require.NoError(t, SerializeShared(s, blobCodec, w, one, "b"))

	first := w.root["a"].(memNode)
	second := w.root["b"].(memNode)
	require.Equal(t, first["ref"], second["ref"])
	require.Equal(t, true, first["def"])
	require.Equal(t, false, second["def"])
}
