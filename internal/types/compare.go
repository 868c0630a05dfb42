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
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CompareResult is the result of comparing two Values.
type CompareResult int

const (
	// Less means a sorts before b.
	Less CompareResult = iota - 1
	// Equal means a and b are equal under the canonical type order.
	Equal
	// Greater means a sorts after b.
	Greater
)

// typeClass assigns each Value a position in the BSON canonical type
// order. Missing and Null share a class, matching MongoDB's sort
// behavior where an absent field sorts like null.
func typeClass(v any) int {
	switch v.(type) {
	case MissingType, NullType:
		return 0
	case int32, int64, float64, bson.Decimal128:
		return 1
	case string:
		return 2
	case *Document:
		return 3
	case *Array:
		return 4
	case bson.Binary:
		return 5
	case bson.ObjectID:
		return 6
	case bool:
		return 7
	case bson.DateTime:
		return 8
	case bson.Timestamp:
		return 9
	case bson.Regex:
		return 10
	default:
		return 11
	}
}

// Compare returns the total order of a and b following BSON's canonical
// type order: cross-type comparisons compare type class first; within
// a class, Int64/Double/Decimal128 compare by numeric value.
func Compare(a, b any) CompareResult {
	a, b = Normalize(a), Normalize(b)

	ca, cb := typeClass(a), typeClass(b)
	if ca != cb {
		return compareInts(ca, cb)
	}

	switch ca {
	case 0:
		return Equal
	case 1:
		return compareNumbers(a, b)
	case 2:
		return compareInts(strings.Compare(a.(string), b.(string)), 0)
	case 3:
		return compareDocuments(a.(*Document), b.(*Document))
	case 4:
		return compareArrays(a.(*Array), b.(*Array))
	case 5:
		return compareBinary(a.(bson.Binary), b.(bson.Binary))
	case 6:
		oa, ob := a.(bson.ObjectID), b.(bson.ObjectID)
		return compareBytes(oa[:], ob[:])
	case 7:
		return compareBools(a.(bool), b.(bool))
	case 8:
		return compareInts64(int64(a.(bson.DateTime)), int64(b.(bson.DateTime)))
	case 9:
		return compareTimestamps(a.(bson.Timestamp), b.(bson.Timestamp))
	case 10:
		ra, rb := a.(bson.Regex), b.(bson.Regex)

		if c := strings.Compare(ra.Pattern, rb.Pattern); c != 0 {
			return compareInts(c, 0)
		}

		return compareInts(strings.Compare(ra.Options, rb.Options), 0)
	default:
		return Equal
	}
}

func compareInts(a, b int) CompareResult {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func compareInts64(a, b int64) CompareResult {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func compareBools(a, b bool) CompareResult {
	if a == b {
		return Equal
	}

	if !a {
		return Less
	}

	return Greater
}

func compareBytes(a, b []byte) CompareResult {
	switch {
	case string(a) < string(b):
		return Less
	case string(a) > string(b):
		return Greater
	default:
		return Equal
	}
}

func compareBinary(a, b bson.Binary) CompareResult {
	if a.Subtype != b.Subtype {
		return compareInts(int(a.Subtype), int(b.Subtype))
	}

	return compareBytes(a.Data, b.Data)
}

func compareTimestamps(a, b bson.Timestamp) CompareResult {
	if a.T != b.T {
		return compareInts64(int64(a.T), int64(b.T))
	}

	return compareInts64(int64(a.I), int64(b.I))
}

// ToFloat64 converts a numeric Value to float64, for ordering and for
// arithmetic operators that don't need to preserve integer precision.
func ToFloat64(v any) (float64, bool) {
	switch v := v.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case bson.Decimal128:
		f, err := decimal128ToFloat(v)
		return f, err == nil
	default:
		return 0, false
	}
}

func compareNumbers(a, b any) CompareResult {
	fa, _ := ToFloat64(a)
	fb, _ := ToFloat64(b)

	switch {
	case fa < fb:
		return Less
	case fa > fb:
		return Greater
	default:
		return Equal
	}
}

// compareDocuments compares two documents field by field, in a's key
// order: first by field count, then by successive (key, value) pairs.
// This mirrors MongoDB's object comparison, which is sensitive to key
// order (not a set comparison).
func compareDocuments(a, b *Document) CompareResult {
	if c := compareInts(a.Len(), b.Len()); c != Equal {
		return c
	}

	for i, k := range a.Keys() {
		bk := b.Keys()[i]
		if c := compareInts(strings.Compare(k, bk), 0); c != Equal {
			return c
		}

		av, _ := a.Get(k)
		bv, _ := b.Get(bk)

		if c := Compare(av, bv); c != Equal {
			return c
		}
	}

	return Equal
}

// compareArrays compares two arrays element by element; the shorter
// array, if a prefix of the longer, sorts first.
func compareArrays(a, b *Array) CompareResult {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}

	for i := 0; i < n; i++ {
		av, _ := a.Get(i)
		bv, _ := b.Get(i)

		if c := Compare(av, bv); c != Equal {
			return c
		}
	}

	return compareInts(a.Len(), b.Len())
}
