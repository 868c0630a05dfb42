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
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CanonicalKey returns a deterministic string encoding of v suitable
// for use as a hash-map key.
// Numeric values compare equal across Int64/Double/int32 (canonicalized
// to the same textual form) while everything else is tagged with its
// type class, so "1" (string) and 1 (int) never collide.
func CanonicalKey(v any) string {
	var sb strings.Builder

	writeCanonical(&sb, v)

	return sb.String()
}

func writeCanonical(sb *strings.Builder, v any) {
	v = Normalize(v)

	switch v := v.(type) {
	case MissingType:
		sb.WriteString("u:")
	case NullType:
		sb.WriteString("n:")
	case bool:
		sb.WriteString("b:")
		sb.WriteString(strconv.FormatBool(v))
	case int32:
		sb.WriteString("#:")
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 64))
	case int64:
		sb.WriteString("#:")
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 64))
	case float64:
		sb.WriteString("#:")
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	case bson.Decimal128:
		sb.WriteString("#:")
		sb.WriteString(v.String())
	case string:
		sb.WriteString("s:")
		sb.WriteString(v)
	case bson.DateTime:
		sb.WriteString("d:")
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case bson.Timestamp:
		sb.WriteString("t:")
		sb.WriteString(strconv.FormatUint(uint64(v.T), 10))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatUint(uint64(v.I), 10))
	case bson.ObjectID:
		sb.WriteString("o:")
		sb.WriteString(v.Hex())
	case bson.Regex:
		sb.WriteString("r:")
		sb.WriteString(v.Pattern)
		sb.WriteByte(0)
		sb.WriteString(v.Options)
	case bson.Binary:
		sb.WriteString("x:")
		sb.WriteString(strconv.Itoa(int(v.Subtype)))
		sb.WriteByte(':')
		sb.Write(v.Data)
	case *Document:
		sb.WriteString("{")

		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteByte(',')
			}

			fmt.Fprintf(sb, "%q:", k)

			val, _ := v.Get(k)
			writeCanonical(sb, val)
		}

		sb.WriteString("}")
	case *Array:
		sb.WriteString("[")

		for i, val := range v.Slice() {
			if i > 0 {
				sb.WriteByte(',')
			}

			writeCanonical(sb, val)
		}

		sb.WriteString("]")
	default:
		fmt.Fprintf(sb, "?:%v", v)
	}
}
