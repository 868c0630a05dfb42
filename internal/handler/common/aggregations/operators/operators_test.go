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

package operators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/must"
)

func dispatch(t *testing.T, name string, args ...any) (any, error) {
	t.Helper()

	return Dispatch(name, args, &Context{IDKey: "_id"})
}

func TestArithmetic(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		op       string
		args     []any
		expected any
	}{
		"AddInts":          {"$add", []any{int64(1), int32(2), int64(3)}, int64(6)},
		"AddMixed":         {"$add", []any{int64(1), 0.5}, 1.5},
		"AddNullPropagates": {
			op:       "$add",
			args:     []any{int64(1), types.Null},
			expected: nil,
		},
		"AddMissingPropagates": {"$add", []any{int64(1), types.Missing}, nil},
		"SubtractInts":         {"$subtract", []any{int64(5), int64(3)}, int64(2)},
		"SubtractDoubles":      {"$subtract", []any{5.5, int64(3)}, 2.5},
		"MultiplyInts":         {"$multiply", []any{int64(4), int64(5)}, int64(20)},
		"Divide":               {"$divide", []any{int64(7), int64(2)}, 3.5},
		"Mod":                  {"$mod", []any{int64(7), int64(3)}, 1.0},
		"Abs":                  {"$abs", []any{-3.5}, 3.5},
		"Ceil":                 {"$ceil", []any{1.2}, 2.0},
		"Pow":                  {"$pow", []any{int64(2), int64(10)}, 1024.0},
		"Round":                {"$round", []any{2.567, int64(2)}, 2.57},
		"Trunc":                {"$trunc", []any{2.567, int64(2)}, 2.56},
		"Sqrt":                 {"$sqrt", []any{int64(16)}, 4.0},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := dispatch(t, tc.op, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("DateArithmetic", func(t *testing.T) {
		t.Parallel()

		d := bson.DateTime(1000)

		got, err := dispatch(t, "$add", d, int64(500))
		require.NoError(t, err)
		assert.Equal(t, bson.DateTime(1500), got)

		got, err = dispatch(t, "$subtract", bson.DateTime(1500), d)
		require.NoError(t, err)
		assert.Equal(t, int64(500), got)

		got, err = dispatch(t, "$subtract", bson.DateTime(1500), int64(500))
		require.NoError(t, err)
		assert.Equal(t, bson.DateTime(1000), got)
	})

	t.Run("DivideByZero", func(t *testing.T) {
		t.Parallel()

		for _, op := range []string{"$divide", "$mod"} {
			_, err := dispatch(t, op, int64(1), int64(0))
			require.Error(t, err)

			var cmdErr *handlererrors.CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, handlererrors.ErrDivideByZero, cmdErr.Code())
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch(t, "$add", int64(1), "two")
		require.Error(t, err)
	})
}

func TestComparisonOperators(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		op       string
		a, b     any
		expected any
	}{
		"EqNumericCrossType": {"$eq", int64(1), 1.0, true},
		"NeSameValue":        {"$ne", "x", "x", false},
		"GtCrossTypeClass":   {"$gt", "a", int64(999), true},
		"LteEqual":           {"$lte", int64(3), int64(3), true},
		"LtNullVsNumber":     {"$lt", types.Null, int64(0), true},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := dispatch(t, tc.op, tc.a, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("Cmp", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$cmp", int64(1), int64(2))
		require.NoError(t, err)
		assert.Equal(t, int32(-1), got)
	})
}

func TestStringOperators(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		op       string
		args     []any
		expected any
	}{
		"Concat":        {"$concat", []any{"foo", "-", "bar"}, "foo-bar"},
		"ConcatNull":    {"$concat", []any{"foo", types.Null}, nil},
		"Upper":         {"$toUpper", []any{"abc"}, "ABC"},
		"Lower":         {"$toLower", []any{"AbC"}, "abc"},
		"Trim":          {"$trim", []any{"  x  "}, "x"},
		"TrimCutset":    {"$trim", []any{"xxhixx", "x"}, "hi"},
		"LTrim":         {"$ltrim", []any{"  x  "}, "x  "},
		"RTrim":         {"$rtrim", []any{"  x  "}, "  x"},
		"StrLenCP":      {"$strLenCP", []any{"héllo"}, int64(5)},
		"StrLenBytes":   {"$strLenBytes", []any{"héllo"}, int64(6)},
		"SubstrCP":      {"$substrCP", []any{"hello", int64(1), int64(3)}, "ell"},
		"SubstrClamped": {"$substrCP", []any{"hello", int64(3), int64(99)}, "lo"},
		"IndexOfCP":     {"$indexOfCP", []any{"hello", "ll"}, int64(2)},
		"IndexOfAbsent": {"$indexOfCP", []any{"hello", "zz"}, int64(-1)},
		"ReplaceOne":    {"$replaceOne", []any{"aaa", "a", "b"}, "baa"},
		"ReplaceAll":    {"$replaceAll", []any{"aaa", "a", "b"}, "bbb"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := dispatch(t, tc.op, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("Split", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$split", "a,b,c", ",")
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray("a", "b", "c"))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})
}

func TestArrayOperators(t *testing.T) {
	t.Parallel()

	nums := must.NotFail(types.NewArray(int64(1), int64(2), int64(3)))

	t.Run("Size", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$size", nums)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got)
	})

	t.Run("ElemAtNegative", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$arrayElemAt", nums, int64(-1))
		require.NoError(t, err)
		assert.Equal(t, int64(3), got)
	})

	t.Run("ElemAtOutOfRange", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$arrayElemAt", nums, int64(9))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ConcatArrays", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$concatArrays", nums, must.NotFail(types.NewArray(int64(4))))
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray(int64(1), int64(2), int64(3), int64(4)))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("Reverse", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$reverseArray", nums)
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray(int64(3), int64(2), int64(1)))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("SliceNegative", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$slice", nums, int64(-2))
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray(int64(2), int64(3)))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("SlicePositionCount", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$slice", nums, int64(1), int64(1))
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray(int64(2)))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("In", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$in", 2.0, nums)
		require.NoError(t, err)
		assert.Equal(t, true, got, "numeric equality crosses representations")
	})

	t.Run("IndexOfArray", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$indexOfArray", nums, int64(3))
		require.NoError(t, err)
		assert.Equal(t, int64(2), got)
	})

	t.Run("IsArray", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$isArray", nums)
		require.NoError(t, err)
		assert.Equal(t, true, got)

		got, err = dispatch(t, "$isArray", "nope")
		require.NoError(t, err)
		assert.Equal(t, false, got)
	})

	t.Run("MinMaxVariadic", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$min", int64(3), types.Null, int64(1))
		require.NoError(t, err)
		assert.Equal(t, int64(1), got, "$min skips nulls")

		got, err = dispatch(t, "$max", int64(3), int64(1))
		require.NoError(t, err)
		assert.Equal(t, int64(3), got)
	})
}

func TestObjectOperators(t *testing.T) {
	t.Parallel()

	t.Run("ObjectToArrayRoundTrip", func(t *testing.T) {
		t.Parallel()

		doc := must.NotFail(types.NewDocument("a", int64(1), "b", "two"))

		pairs, err := dispatch(t, "$objectToArray", doc)
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray(
			must.NotFail(types.NewDocument("k", "a", "v", int64(1))),
			must.NotFail(types.NewDocument("k", "b", "v", "two")),
		))
		require.Equal(t, types.Equal, types.Compare(pairs, expected))

		back, err := dispatch(t, "$arrayToObject", pairs)
		require.NoError(t, err)
		assert.Equal(t, types.Equal, types.Compare(back, doc))
	})

	t.Run("ArrayToObjectPairForm", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$arrayToObject", must.NotFail(types.NewArray(
			must.NotFail(types.NewArray("k1", int64(1))),
			must.NotFail(types.NewArray("k2", int64(2))),
		)))
		require.NoError(t, err)

		expected := must.NotFail(types.NewDocument("k1", int64(1), "k2", int64(2)))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("MergeObjects", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$mergeObjects",
			must.NotFail(types.NewDocument("a", int64(1), "b", int64(2))),
			types.Null,
			must.NotFail(types.NewDocument("b", int64(3), "c", int64(4))),
		)
		require.NoError(t, err)

		expected := must.NotFail(types.NewDocument("a", int64(1), "b", int64(3), "c", int64(4)))
		assert.Equal(t, types.Equal, types.Compare(got, expected), "later keys win, nulls skipped")
	})
}

func TestSetOperators(t *testing.T) {
	t.Parallel()

	ab := must.NotFail(types.NewArray("a", "b", "a"))
	bc := must.NotFail(types.NewArray("b", "c"))

	t.Run("Union", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$setUnion", ab, bc)
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray("a", "b", "c"))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("Intersection", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$setIntersection", ab, bc)
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray("b"))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("Difference", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$setDifference", ab, bc)
		require.NoError(t, err)

		expected := must.NotFail(types.NewArray("a"))
		assert.Equal(t, types.Equal, types.Compare(got, expected))
	})

	t.Run("EqualsIgnoresDupsAndOrder", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$setEquals", ab, must.NotFail(types.NewArray("b", "a")))
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})

	t.Run("IsSubset", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$setIsSubset", must.NotFail(types.NewArray("b")), bc)
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})

	t.Run("AnyAllElementsTrue", func(t *testing.T) {
		t.Parallel()

		mixed := must.NotFail(types.NewArray(true, false))

		got, err := dispatch(t, "$anyElementTrue", mixed)
		require.NoError(t, err)
		assert.Equal(t, true, got)

		got, err = dispatch(t, "$allElementsTrue", mixed)
		require.NoError(t, err)
		assert.Equal(t, false, got)
	})
}

func TestTypeConversion(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		op       string
		arg      any
		expected any
	}{
		"ToStringInt":    {"$toString", int64(42), "42"},
		"ToStringBool":   {"$toString", true, "true"},
		"ToIntString":    {"$toInt", "17", int32(17)},
		"ToIntDouble":    {"$toInt", 17.9, int32(17)},
		"ToLongString":   {"$toLong", "90000000000", int64(90000000000)},
		"ToDoubleString": {"$toDouble", "2.5", 2.5},
		"ToBoolZero":     {"$toBool", int64(0), false},
		"ToBoolString":   {"$toBool", "", true},
		"ToDateMillis":   {"$toDate", int64(86400000), bson.DateTime(86400000)},
		"IsNumberInt":    {"$isNumber", int64(1), true},
		"IsNumberString": {"$isNumber", "1", false},
		"TypeLong":       {"$type", int64(1), "long"},
		"TypeInt":        {"$type", int32(1), "int"},
		"TypeDouble":     {"$type", 1.0, "double"},
		"TypeNull":       {"$type", types.Null, "null"},
		"TypeMissing":    {"$type", types.Missing, "missing"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := dispatch(t, tc.op, tc.arg)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("ToDateString", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$toDate", "2024-03-01T12:00:00Z")
		require.NoError(t, err)

		expected := bson.NewDateTimeFromTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		assert.Equal(t, expected, got)
	})

	t.Run("ConvertOnError", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$convert", "not-a-number", "int", "fallback", types.Missing)
		require.NoError(t, err)
		assert.Equal(t, "fallback", got)
	})

	t.Run("ConvertOnNull", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$convert", types.Null, "int", types.Missing, int64(-1))
		require.NoError(t, err)
		assert.Equal(t, int64(-1), got)
	})

	t.Run("ConvertErrorPropagates", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch(t, "$convert", "nope", "int")
		require.Error(t, err)
	})
}

func TestDateOperators(t *testing.T) {
	t.Parallel()

	// 2024-02-29T13:45:30.250Z, a leap day.
	ts := time.Date(2024, 2, 29, 13, 45, 30, 250*int(time.Millisecond), time.UTC)
	d := bson.NewDateTimeFromTime(ts)

	for name, tc := range map[string]struct {
		op       string
		expected any
	}{
		"Year":       {"$year", int32(2024)},
		"Month":      {"$month", int32(2)},
		"DayOfMonth": {"$dayOfMonth", int32(29)},
		"Hour":       {"$hour", int32(13)},
		"Minute":     {"$minute", int32(45)},
		"Second":     {"$second", int32(30)},
		"DayOfYear":  {"$dayOfYear", int32(60)},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := dispatch(t, tc.op, d)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("DateToString", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$dateToString", d, "%Y-%m-%d %H:%M:%S")
		require.NoError(t, err)
		assert.Equal(t, "2024-02-29 13:45:30", got)
	})

	t.Run("DateToParts", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$dateToParts", d)
		require.NoError(t, err)

		parts, ok := got.(*types.Document)
		require.True(t, ok)
		assert.Equal(t, int32(2024), must.NotFail(parts.Get("year")))
		assert.Equal(t, int32(250), must.NotFail(parts.Get("millisecond")))
	})

	t.Run("DateAdd", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$dateAdd", d, "day", int64(1))
		require.NoError(t, err)

		assert.Equal(t, bson.NewDateTimeFromTime(ts.AddDate(0, 0, 1)), got)
	})

	t.Run("NullPropagates", func(t *testing.T) {
		t.Parallel()

		got, err := dispatch(t, "$year", types.Null)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRegistered("$add"))
	assert.False(t, IsRegistered("$definitelyNot"))

	_, err := Dispatch("$definitelyNot", nil, nil)
	require.Error(t, err)

	assert.True(t, LooksLikeCall("$x"))
	assert.False(t, LooksLikeCall("x"))
	assert.False(t, LooksLikeCall("$"))
	assert.False(t, LooksLikeCall("$a.b"))
}
