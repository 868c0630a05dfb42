// Copyright 2026 The Memagg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/must"
)

func testDoc() *types.Document {
	return must.NotFail(types.NewDocument(
		"a", must.NotFail(types.NewDocument(
			"b", must.NotFail(types.NewArray(
				must.NotFail(types.NewDocument("c", int32(1))),
				must.NotFail(types.NewDocument("c", int32(2))),
				must.NotFail(types.NewDocument("d", int32(3))),
			)),
		)),
		"arr", must.NotFail(types.NewArray(int32(10), int32(20), int32(30))),
		"42", "numeric-key",
	))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		path     string
		expected any
	}{
		"TopLevel":     {"arr", must.NotFail(types.NewArray(int32(10), int32(20), int32(30)))},
		"ArrayIndex":   {"arr.1", int32(20)},
		"OutOfRange":   {"arr.9", types.Missing},
		"AbsentKey":    {"nope", types.Missing},
		"AbsentNested": {"a.nope", types.Missing},
		"ScalarSubPath": {
			path:     "arr.1.x",
			expected: types.Missing,
		},
		// Non-numeric segment on an array maps across elements,
		// dropping Missing results.
		"ImplicitTraversal": {"a.b.c", must.NotFail(types.NewArray(int32(1), int32(2)))},
		"IndexThenKey":      {"a.b.0.c", int32(1)},
		// A numeric segment on a Document is a literal key.
		"NumericDocumentKey": {"42", "numeric-key"},
	} {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := Resolve(testDoc(), types.NewPathFromString(tc.path))
			assert.Equal(t, types.Equal, types.Compare(got, tc.expected))

			if types.IsMissing(tc.expected) {
				assert.True(t, types.IsMissing(got))
			}
		})
	}
}

func TestAssignRemoveRoundTrip(t *testing.T) {
	t.Parallel()

	doc := must.NotFail(types.NewDocument("keep", int32(1)))
	path := types.NewPathFromString("x.y.z")

	require.NoError(t, Assign(doc, path, "v"))
	assert.Equal(t, "v", Resolve(doc, path))

	Remove(doc, path)
	assert.True(t, types.IsMissing(Resolve(doc, path)))

	// Intermediate containers created by Assign survive Remove; the
	// original fields are untouched.
	assert.Equal(t, int32(1), must.NotFail(doc.Get("keep")))

	x := must.NotFail(doc.Get("x")).(*types.Document)
	y := must.NotFail(x.Get("y")).(*types.Document)
	assert.Zero(t, y.Len())
}

func TestAssignArraySemantics(t *testing.T) {
	t.Parallel()

	t.Run("IndexReplace", func(t *testing.T) {
		t.Parallel()

		doc := must.NotFail(types.NewDocument("arr", must.NotFail(types.NewArray(int32(1), int32(2)))))
		require.NoError(t, Assign(doc, types.NewPathFromString("arr.1"), int32(99)))

		arr := must.NotFail(doc.Get("arr")).(*types.Array)
		assert.Equal(t, int32(99), must.NotFail(arr.Get(1)))
	})

	t.Run("IndexExtendsWithNullPadding", func(t *testing.T) {
		t.Parallel()

		doc := must.NotFail(types.NewDocument("arr", must.NotFail(types.NewArray(int32(1)))))
		require.NoError(t, Assign(doc, types.NewPathFromString("arr.3"), "end"))

		arr := must.NotFail(doc.Get("arr")).(*types.Array)
		require.Equal(t, 4, arr.Len())
		assert.Equal(t, types.Null, must.NotFail(arr.Get(1)))
		assert.Equal(t, types.Null, must.NotFail(arr.Get(2)))
		assert.Equal(t, "end", must.NotFail(arr.Get(3)))
	})

	t.Run("NonNumericReplicatesIntoElements", func(t *testing.T) {
		t.Parallel()

		doc := testDoc()
		require.NoError(t, Assign(doc, types.NewPathFromString("a.b.c"), int32(7)))

		got := Resolve(doc, types.NewPathFromString("a.b.c"))
		expected := must.NotFail(types.NewArray(int32(7), int32(7), int32(7)))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("AssigningMissingRemoves", func(t *testing.T) {
		t.Parallel()

		doc := must.NotFail(types.NewDocument("a", int32(1), "b", int32(2)))
		require.NoError(t, Assign(doc, types.NewPathFromString("a"), types.Missing))

		assert.False(t, doc.Has("a"))
		assert.True(t, doc.Has("b"))
	})
}

func TestFindValues(t *testing.T) {
	t.Parallel()

	doc := testDoc()

	t.Run("NoArrayOptions", func(t *testing.T) {
		t.Parallel()

		res, err := FindValues(doc, types.NewPathFromString("a.b.c"), nil)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("SearchArray", func(t *testing.T) {
		t.Parallel()

		res, err := FindValues(doc, types.NewPathFromString("a.b.c"), &FindValuesOpts{SearchArray: true})
		require.NoError(t, err)
		assert.Equal(t, []any{int32(1), int32(2)}, res)
	})

	t.Run("FindArrayIndex", func(t *testing.T) {
		t.Parallel()

		res, err := FindValues(doc, types.NewPathFromString("arr.2"), &FindValuesOpts{FindArrayIndex: true})
		require.NoError(t, err)
		assert.Equal(t, []any{int32(30)}, res)
	})
}
