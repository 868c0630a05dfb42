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

// Package types provides a uniform, BSON-flavored value representation
// shared by path resolution, the expression evaluator, and the pipeline
// runtime. Values are not wrapped in a tagged struct: a Value is simply
// `any` holding one of a closed set of Go types, validated at every
// container write.
package types

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Value is the dynamic type of anything that can live inside a Document
// or Array: NullType, bool, int32, int64, float64, bson.Decimal128,
// string, bson.DateTime, bson.Regex, bson.Binary, bson.Timestamp,
// bson.ObjectID, *Document, or *Array. MissingType is deliberately not
// in the set: it exists only at lookup boundaries.
type Value = any

// NullType represents the BSON null value. It is distinct from Go's nil
// and from MissingType: a field set to Null is present with no value,
// while a Missing field is absent entirely.
type NullType struct{}

// Null is the singular instance of NullType, used the same way the
// zero value of a named type is normally used: by identity, not by
// construction.
var Null = NullType{}

// MissingType is the sentinel returned by path resolution when a
// segment does not exist. It is never stored inside a Document or
// Array; assigning MissingType to a path removes the key instead.
type MissingType struct{}

// Missing is the singular instance of MissingType.
var Missing = MissingType{}

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v any) bool {
	_, ok := v.(MissingType)
	return ok
}

// IsNull reports whether v is the Null sentinel or an untyped Go nil
// (which callers sometimes hand in at the API boundary in place of
// Null; the engine normalizes it immediately).
func IsNull(v any) bool {
	if v == nil {
		return true
	}

	_, ok := v.(NullType)
	return ok
}

// Truthy implements MongoDB's expression-language truthiness: everything
// is true except Null, Missing, false, and the number zero (in any of
// its numeric representations).
func Truthy(v any) bool {
	switch v := v.(type) {
	case NullType, MissingType:
		return false
	case bool:
		return v
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		if f, ok := ToFloat64(v); ok {
			return f != 0
		}

		return true
	}
}

// Normalize coerces a few permissive Go inputs (nil, int) into the
// closed Value set expected by the rest of the engine. It is applied at
// construction boundaries (NewDocument, NewArray, Document.Set) so that
// the comparator and evaluator never need to special-case them.
func Normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return Null
	case int:
		return int64(v)
	default:
		return v
	}
}

// validateValue reports whether v, once normalized, is a supported
// Value type. MissingType is rejected here: a field that is Missing is
// a field that does not exist, so containers must never hold it.
func validateValue(v any) bool {
	switch v.(type) {
	case NullType,
		bool, int32, int64, float64,
		bson.Decimal128, string, bson.DateTime, bson.Regex, bson.Binary,
		bson.Timestamp, bson.ObjectID,
		*Document, *Array:
		return true
	default:
		return false
	}
}
