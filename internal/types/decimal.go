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
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// decimal128ToFloat converts a bson.Decimal128 to float64. Precision
// beyond float64 is lost; callers needing exact decimal arithmetic
// should operate on the Decimal128's string form directly, which this
// package does not attempt.
func decimal128ToFloat(d bson.Decimal128) (float64, error) {
	return strconv.ParseFloat(d.String(), 64)
}

// NewDecimal128FromFloat builds a Decimal128 from a float64's decimal
// string representation.
func NewDecimal128FromFloat(f float64) (bson.Decimal128, error) {
	return bson.ParseDecimal128(strconv.FormatFloat(f, 'g', -1, 64))
}
