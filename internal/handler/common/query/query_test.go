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

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/must"
)

func matchOne(t *testing.T, filter, doc *types.Document) bool {
	t.Helper()

	pred, err := Compile(filter, nil)
	require.NoError(t, err)

	ok, err := pred.Matches(doc)
	require.NoError(t, err)

	return ok
}

func TestCompileField(t *testing.T) {
	t.Parallel()

	doc := must.NotFail(types.NewDocument(
		"name", "ada",
		"age", int32(36),
		"tags", must.NotFail(types.NewArray("x", "y")),
		"addr", must.NotFail(types.NewDocument("city", "london")),
		"scores", must.NotFail(types.NewArray(int32(3), int32(9))),
	))

	for name, tc := range map[string]struct {
		filter   *types.Document
		expected bool
	}{
		"Empty":           {must.NotFail(types.NewDocument()), true},
		"Equality":        {must.NotFail(types.NewDocument("name", "ada")), true},
		"EqualityMiss":    {must.NotFail(types.NewDocument("name", "bob")), false},
		"NumericCrossRep": {must.NotFail(types.NewDocument("age", 36.0)), true},
		"DottedPath":      {must.NotFail(types.NewDocument("addr.city", "london")), true},
		"ImplicitAnd": {
			filter:   must.NotFail(types.NewDocument("name", "ada", "age", int32(36))),
			expected: true,
		},
		"ImplicitAndMiss": {
			filter:   must.NotFail(types.NewDocument("name", "ada", "age", int32(37))),
			expected: false,
		},
		"ArrayElementEquality": {must.NotFail(types.NewDocument("tags", "x")), true},
		"ArrayWholeEquality": {
			filter:   must.NotFail(types.NewDocument("tags", must.NotFail(types.NewArray("x", "y")))),
			expected: true,
		},
		"Gt":        {must.NotFail(types.NewDocument("age", must.NotFail(types.NewDocument("$gt", int32(30))))), true},
		"GtMiss":    {must.NotFail(types.NewDocument("age", must.NotFail(types.NewDocument("$gt", int32(40))))), false},
		"GteAndLt":  {must.NotFail(types.NewDocument("age", must.NotFail(types.NewDocument("$gte", int32(36), "$lt", int32(40))))), true},
		"Ne":        {must.NotFail(types.NewDocument("name", must.NotFail(types.NewDocument("$ne", "bob")))), true},
		"In":        {must.NotFail(types.NewDocument("name", must.NotFail(types.NewDocument("$in", must.NotFail(types.NewArray("ada", "bob")))))), true},
		"Nin":       {must.NotFail(types.NewDocument("name", must.NotFail(types.NewDocument("$nin", must.NotFail(types.NewArray("ada")))))), false},
		"InOnArray": {must.NotFail(types.NewDocument("tags", must.NotFail(types.NewDocument("$in", must.NotFail(types.NewArray("y")))))), true},
		"ExistsTrue": {
			filter:   must.NotFail(types.NewDocument("name", must.NotFail(types.NewDocument("$exists", true)))),
			expected: true,
		},
		"ExistsFalse": {
			filter:   must.NotFail(types.NewDocument("ghost", must.NotFail(types.NewDocument("$exists", false)))),
			expected: true,
		},
		"TypeString": {must.NotFail(types.NewDocument("name", must.NotFail(types.NewDocument("$type", "string")))), true},
		"TypeCode":   {must.NotFail(types.NewDocument("age", must.NotFail(types.NewDocument("$type", int32(16))))), true},
		"Size":       {must.NotFail(types.NewDocument("tags", must.NotFail(types.NewDocument("$size", int32(2))))), true},
		"SizeMiss":   {must.NotFail(types.NewDocument("tags", must.NotFail(types.NewDocument("$size", int32(3))))), false},
		"Mod":        {must.NotFail(types.NewDocument("age", must.NotFail(types.NewDocument("$mod", must.NotFail(types.NewArray(int64(10), int64(6))))))), true},
		"NotGt": {
			filter:   must.NotFail(types.NewDocument("age", must.NotFail(types.NewDocument("$not", must.NotFail(types.NewDocument("$gt", int32(40))))))),
			expected: true,
		},
		"All": {
			filter:   must.NotFail(types.NewDocument("tags", must.NotFail(types.NewDocument("$all", must.NotFail(types.NewArray("x", "y")))))),
			expected: true,
		},
		"AllMiss": {
			filter:   must.NotFail(types.NewDocument("tags", must.NotFail(types.NewDocument("$all", must.NotFail(types.NewArray("x", "z")))))),
			expected: false,
		},
		"ElemMatchValueForm": {
			filter: must.NotFail(types.NewDocument("scores", must.NotFail(types.NewDocument(
				"$elemMatch", must.NotFail(types.NewDocument("$gt", int32(5), "$lt", int32(10))),
			)))),
			expected: true,
		},
		"ElemMatchRequiresSingleElement": {
			// No single element is both >5 and <5, even though the
			// array as a whole straddles the bounds.
			filter: must.NotFail(types.NewDocument("scores", must.NotFail(types.NewDocument(
				"$elemMatch", must.NotFail(types.NewDocument("$gt", int32(5), "$lt", int32(5))),
			)))),
			expected: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, matchOne(t, tc.filter, doc))
		})
	}
}

func TestRegexPredicate(t *testing.T) {
	t.Parallel()

	doc := must.NotFail(types.NewDocument("name", "Ada Lovelace"))

	t.Run("OperatorWithOptions", func(t *testing.T) {
		t.Parallel()

		filter := must.NotFail(types.NewDocument("name", must.NotFail(types.NewDocument(
			"$regex", "^ada",
			"$options", "i",
		))))
		assert.True(t, matchOne(t, filter, doc))
	})

	t.Run("LiteralRegexValue", func(t *testing.T) {
		t.Parallel()

		filter := must.NotFail(types.NewDocument("name", bson.Regex{Pattern: "Love"}))
		assert.True(t, matchOne(t, filter, doc))
	})

	t.Run("NonStringFieldNeverMatches", func(t *testing.T) {
		t.Parallel()

		numDoc := must.NotFail(types.NewDocument("name", int32(5)))
		filter := must.NotFail(types.NewDocument("name", bson.Regex{Pattern: ".*"}))
		assert.False(t, matchOne(t, filter, numDoc))
	})

	t.Run("InvalidPatternRejectedAtCompile", func(t *testing.T) {
		t.Parallel()

		filter := must.NotFail(types.NewDocument("name", must.NotFail(types.NewDocument("$regex", "("))))
		_, err := Compile(filter, nil)
		require.Error(t, err)
	})
}

func TestElemMatchQueryForm(t *testing.T) {
	t.Parallel()

	doc := must.NotFail(types.NewDocument(
		"items", must.NotFail(types.NewArray(
			must.NotFail(types.NewDocument("sku", "a", "qty", int32(5))),
			must.NotFail(types.NewDocument("sku", "b", "qty", int32(50))),
		)),
	))

	filter := must.NotFail(types.NewDocument("items", must.NotFail(types.NewDocument(
		"$elemMatch", must.NotFail(types.NewDocument(
			"sku", "b",
			"qty", must.NotFail(types.NewDocument("$gt", int32(10))),
		)),
	))))
	assert.True(t, matchOne(t, filter, doc))

	miss := must.NotFail(types.NewDocument("items", must.NotFail(types.NewDocument(
		"$elemMatch", must.NotFail(types.NewDocument(
			"sku", "a",
			"qty", must.NotFail(types.NewDocument("$gt", int32(10))),
		)),
	))))
	assert.False(t, matchOne(t, miss, doc), "the whole sub-predicate must hit one element")
}

func TestLogicalOperators(t *testing.T) {
	t.Parallel()

	doc := must.NotFail(types.NewDocument("a", int32(1), "b", int32(2)))

	or := must.NotFail(types.NewDocument("$or", must.NotFail(types.NewArray(
		must.NotFail(types.NewDocument("a", int32(9))),
		must.NotFail(types.NewDocument("b", int32(2))),
	))))
	assert.True(t, matchOne(t, or, doc))

	and := must.NotFail(types.NewDocument("$and", must.NotFail(types.NewArray(
		must.NotFail(types.NewDocument("a", int32(1))),
		must.NotFail(types.NewDocument("b", int32(9))),
	))))
	assert.False(t, matchOne(t, and, doc))

	nor := must.NotFail(types.NewDocument("$nor", must.NotFail(types.NewArray(
		must.NotFail(types.NewDocument("a", int32(9))),
		must.NotFail(types.NewDocument("b", int32(9))),
	))))
	assert.True(t, matchOne(t, nor, doc))
}

func TestExprPredicate(t *testing.T) {
	t.Parallel()

	doc := must.NotFail(types.NewDocument("spent", int32(90), "budget", int32(100)))

	filter := must.NotFail(types.NewDocument("$expr", must.NotFail(types.NewDocument(
		"$lt", must.NotFail(types.NewArray("$spent", "$budget")),
	))))
	assert.True(t, matchOne(t, filter, doc))

	over := must.NotFail(types.NewDocument("spent", int32(150), "budget", int32(100)))
	assert.False(t, matchOne(t, filter, over))
}

func TestWherePredicate(t *testing.T) {
	t.Parallel()

	filter := must.NotFail(types.NewDocument("$where", "this.a > 1"))

	t.Run("DisabledByDefault", func(t *testing.T) {
		t.Parallel()

		_, err := Compile(filter, nil)
		require.Error(t, err)

		var cmdErr *handlererrors.CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, handlererrors.ErrScriptDisabled, cmdErr.Code())
	})

	t.Run("DelegatesToScript", func(t *testing.T) {
		t.Parallel()

		ctx := &Context{
			ScriptEnabled: true,
			Script: func(source string, args []any) (any, error) {
				require.Equal(t, "this.a > 1", source)
				require.Len(t, args, 1)

				doc := args[0].(*types.Document)
				v, _ := doc.Get("a")
				n, _ := types.ToFloat64(v)

				return n > 1, nil
			},
		}

		pred, err := Compile(filter, ctx)
		require.NoError(t, err)

		ok, err := pred.Matches(must.NotFail(types.NewDocument("a", int32(2))))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = pred.Matches(must.NotFail(types.NewDocument("a", int32(0))))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUnknownQueryOperator(t *testing.T) {
	t.Parallel()

	filter := must.NotFail(types.NewDocument("a", must.NotFail(types.NewDocument("$frobnicate", int32(1)))))

	_, err := Compile(filter, nil)
	require.Error(t, err)

	var cmdErr *handlererrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, handlererrors.ErrOperatorInvalid, cmdErr.Code())
}
