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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/util/must"
)

func TestCompare(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		a        any
		b        any
		expected CompareResult
	}{
		"IntDoubleEqual":    {int64(1), 1.0, Equal},
		"Int32Int64Equal":   {int32(7), int64(7), Equal},
		"IntLessDouble":     {int64(1), 1.5, Less},
		"NullEqualsNull":    {Null, Null, Equal},
		"MissingEqualsNull": {Missing, Null, Equal},
		"NullBeforeNumber":  {Null, int64(-1), Less},
		"NumberBeforeString": {
			a:        int64(999),
			b:        "",
			expected: Less,
		},
		"StringOrder":      {"abc", "abd", Less},
		"BoolOrder":        {false, true, Less},
		"BoolAfterString":  {true, "z", Greater},
		"DateOrder":        {bson.DateTime(1000), bson.DateTime(2000), Less},
		"TimestampOrder":   {bson.Timestamp{T: 1, I: 2}, bson.Timestamp{T: 1, I: 3}, Less},
		"RegexByPattern":   {bson.Regex{Pattern: "a"}, bson.Regex{Pattern: "b"}, Less},
		"ArrayElementwise": {must.NotFail(NewArray(int64(1), int64(2))), must.NotFail(NewArray(int64(1), int64(3))), Less},
		"ArrayPrefixFirst": {must.NotFail(NewArray(int64(1))), must.NotFail(NewArray(int64(1), int64(0))), Less},
		"DocumentByFieldCount": {
			a:        must.NotFail(NewDocument("a", int64(1))),
			b:        must.NotFail(NewDocument("a", int64(1), "b", int64(2))),
			expected: Less,
		},
		"DocumentKeyOrderMatters": {
			a:        must.NotFail(NewDocument("a", int64(1), "b", int64(2))),
			b:        must.NotFail(NewDocument("b", int64(2), "a", int64(1))),
			expected: Less,
		},
	} {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, Compare(tc.a, tc.b))
		})
	}
}

func TestCompareTotalOrderAcrossTypes(t *testing.T) {
	t.Parallel()

	// One value per type class, already in canonical order.
	ordered := []any{
		Null,
		int64(5),
		"s",
		must.NotFail(NewDocument()),
		must.NotFail(NewArray()),
		bson.Binary{Data: []byte{1}},
		bson.ObjectID{},
		true,
		bson.DateTime(0),
		bson.Timestamp{},
		bson.Regex{Pattern: "x"},
	}

	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])

			switch {
			case i < j:
				assert.Equal(t, Less, got, "%d vs %d", i, j)
			case i > j:
				assert.Equal(t, Greater, got, "%d vs %d", i, j)
			default:
				assert.Equal(t, Equal, got, "%d vs %d", i, j)
			}
		}
	}
}

func TestCanonicalKey(t *testing.T) {
	t.Parallel()

	// Numeric values collapse across representations.
	require.Equal(t, CanonicalKey(int64(1)), CanonicalKey(1.0))
	require.Equal(t, CanonicalKey(int32(1)), CanonicalKey(int64(1)))

	// But never across type classes.
	require.NotEqual(t, CanonicalKey("1"), CanonicalKey(int64(1)))
	require.NotEqual(t, CanonicalKey(true), CanonicalKey(int64(1)))
	require.NotEqual(t, CanonicalKey(Null), CanonicalKey(Missing))

	// Documents are order-sensitive; arrays too.
	ab := must.NotFail(NewDocument("a", int64(1), "b", int64(2)))
	ba := must.NotFail(NewDocument("b", int64(2), "a", int64(1)))
	require.NotEqual(t, CanonicalKey(ab), CanonicalKey(ba))

	require.Equal(t,
		CanonicalKey(must.NotFail(NewArray(int64(1), "x"))),
		CanonicalKey(must.NotFail(NewArray(1.0, "x"))),
	)
}

func TestArrayMinMax(t *testing.T) {
	t.Parallel()

	arr := must.NotFail(NewArray(int64(3), "s", int64(1), Null))
	assert.Equal(t, Null, arr.Min())
	assert.Equal(t, "s", arr.Max())

	empty := must.NotFail(NewArray())
	assert.True(t, IsMissing(empty.Min()))
	assert.True(t, IsMissing(empty.Max()))
}
