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
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	Register("$toString", convToString)
	Register("$toInt", convToInt)
	Register("$toLong", convToLong)
	Register("$toDouble", convToDouble)
	Register("$toBool", convToBool)
	Register("$toDecimal", convToDecimal)
	Register("$toDate", convToDate)
	Register("$convert", convConvert)
	Register("$isNumber", convIsNumber)
	Register("$type", convType)
}

func convToString(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$toString", args)
	}

	v := args[0]
	if IsNullish(v) {
		return nil, nil
	}

	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bson.ObjectID:
		return t.Hex(), nil
	case bson.DateTime:
		return t.Time().UTC().Format("2006-01-02T15:04:05.000Z"), nil
	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toString: unsupported conversion type")
	}
}

func convToInt(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$toInt", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	if s, ok := asString(args[0]); ok {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toInt: cannot convert string to int")
		}

		return int32(n), nil
	}

	f, ok := Numeric(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toInt: unsupported conversion type")
	}

	return int32(f), nil
}

func convToLong(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$toLong", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	if s, ok := asString(args[0]); ok {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toLong: cannot convert string to long")
		}

		return n, nil
	}

	f, ok := Numeric(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toLong: unsupported conversion type")
	}

	return int64(f), nil
}

func convToDouble(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$toDouble", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	if s, ok := asString(args[0]); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toDouble: cannot convert string to double")
		}

		return f, nil
	}

	f, ok := Numeric(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toDouble: unsupported conversion type")
	}

	return f, nil
}

func convToDecimal(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$toDecimal", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	f, ok := Numeric(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toDecimal: unsupported conversion type")
	}

	d, err := types.NewDecimal128FromFloat(f)
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toDecimal: conversion failed")
	}

	return d, nil
}

func convToBool(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$toBool", args)
	}

	return types.Truthy(args[0]), nil
}

func convToDate(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$toDate", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	switch t := args[0].(type) {
	case bson.DateTime:
		return t, nil
	case bson.ObjectID:
		return bson.NewDateTimeFromTime(t.Timestamp()), nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			if parsed, err = time.Parse("2006-01-02", t); err != nil {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toDate: cannot parse string as date")
			}
		}

		return bson.NewDateTimeFromTime(parsed), nil
	default:
		if f, ok := Numeric(args[0]); ok {
			return bson.DateTime(int64(f)), nil
		}

		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$toDate: unsupported conversion type")
	}
}

// convConvert implements $convert's keyword form: input and to are
// required; onNull substitutes for a nullish input and onError for a
// failed conversion (types.Missing marks an absent optional argument,
// per the keyword-argument translation in the expression parser).
func convConvert(args []any, ctx *Context) (any, error) {
	if len(args) < 2 || len(args) > 4 {
		return nil, ErrArity("$convert", args)
	}

	for len(args) < 4 {
		args = append(args, types.Missing)
	}

	input, toRaw, onError, onNull := args[0], args[1], args[2], args[3]

	to, ok := toRaw.(string)
	if !ok {
		if f, isNum := Numeric(toRaw); isNum {
			to = bsonTypeNameForCode(int64(f))
		}

		if to == "" {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$convert requires 'to' to name a type")
		}
	}

	if IsNullish(input) {
		if !types.IsMissing(onNull) {
			return onNull, nil
		}

		return nil, nil
	}

	var fn Func

	switch to {
	case "double":
		fn = convToDouble
	case "string":
		fn = convToString
	case "bool":
		fn = convToBool
	case "date":
		fn = convToDate
	case "int":
		fn = convToInt
	case "long":
		fn = convToLong
	case "decimal":
		fn = convToDecimal
	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$convert: unsupported target type")
	}

	out, err := fn([]any{input}, ctx)
	if err != nil {
		if !types.IsMissing(onError) {
			return onError, nil
		}

		return nil, err
	}

	return out, nil
}

// bsonTypeNameForCode maps $convert's numeric type codes to the same
// names the string form uses.
func bsonTypeNameForCode(code int64) string {
	switch code {
	case 1:
		return "double"
	case 2:
		return "string"
	case 8:
		return "bool"
	case 9:
		return "date"
	case 16:
		return "int"
	case 18:
		return "long"
	case 19:
		return "decimal"
	default:
		return ""
	}
}

func convIsNumber(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$isNumber", args)
	}

	switch args[0].(type) {
	case int32, int64, float64, bson.Decimal128:
		return true, nil
	default:
		return false, nil
	}
}

// bsonTypeName mirrors MongoDB's $type alias table.
func bsonTypeName(v any) string {
	switch v.(type) {
	case types.NullType, nil:
		return "null"
	case types.MissingType:
		return "missing"
	case float64:
		return "double"
	case string:
		return "string"
	case *types.Document:
		return "object"
	case *types.Array:
		return "array"
	case bool:
		return "bool"
	case bson.DateTime:
		return "date"
	case int32:
		return "int"
	case int64:
		return "long"
	case bson.Decimal128:
		return "decimal"
	case bson.ObjectID:
		return "objectId"
	case bson.Regex:
		return "regex"
	case bson.Binary:
		return "binData"
	case bson.Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

func convType(args []any, _ *Context) (any, error) {
	if len(args) != 1 {
		return nil, ErrArity("$type", args)
	}

	return bsonTypeName(args[0]), nil
}

// BSONTypeName exports bsonTypeName for callers outside this package
// (the $type query operator in the query package needs the same
// type-name table the $type expression operator uses).
func BSONTypeName(v any) string {
	return bsonTypeName(v)
}
