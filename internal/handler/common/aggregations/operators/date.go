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
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

func init() {
	Register("$year", dateFieldInt(time.Time.Year))
	Register("$month", dateFieldInt(func(t time.Time) int { return int(t.Month()) }))
	Register("$dayOfMonth", dateFieldInt(time.Time.Day))
	Register("$hour", dateFieldInt(time.Time.Hour))
	Register("$minute", dateFieldInt(time.Time.Minute))
	Register("$second", dateFieldInt(time.Time.Second))
	Register("$dayOfWeek", dateFieldInt(func(t time.Time) int { return int(t.Weekday()) + 1 }))
	Register("$dayOfYear", dateFieldInt(func(t time.Time) int { return t.YearDay() }))
	Register("$millisecond", dateFieldInt(func(t time.Time) int { return t.Nanosecond() / int(time.Millisecond) }))
	Register("$dateToString", dateToString)
	Register("$dateToParts", dateToParts)
	Register("$dateAdd", dateAdd)
	Register("$dateSubtract", dateSubtract)
}

func asDateTime(v any) (time.Time, bool) {
	dt, ok := v.(bson.DateTime)
	if !ok {
		return time.Time{}, false
	}

	return dt.Time().UTC(), true
}

func dateFieldInt(fn func(time.Time) int) Func {
	return func(args []any, _ *Context) (any, error) {
		if len(args) != 1 {
			return nil, ErrArity("date field operator", args)
		}

		if IsNullish(args[0]) {
			return nil, nil
		}

		t, ok := asDateTime(args[0])
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "date operator requires a date")
		}

		return int32(fn(t)), nil
	}
}

func dateToString(args []any, _ *Context) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, ErrArity("$dateToString", args)
	}

	t, ok := asDateTime(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$dateToString requires a date")
	}

	format := "2006-01-02T15:04:05.000Z"

	if len(args) == 2 {
		if f, ok := asString(args[1]); ok {
			format = mongoDateFormat(f)
		}
	}

	return t.Format(format), nil
}

// mongoDateFormat translates MongoDB's strftime-style %-directives to
// Go's reference-time layout, covering the directives the engine
// actually needs.
func mongoDateFormat(f string) string {
	replacer := map[string]string{
		"%Y": "2006", "%m": "01", "%d": "02",
		"%H": "15", "%M": "04", "%S": "05",
		"%L": "000", "%Z": "Z07:00",
	}

	out := f

	for k, v := range replacer {
		out = replaceAllLiteral(out, k, v)
	}

	return out
}

func replaceAllLiteral(s, old, new string) string {
	var out []byte

	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && s[i:i+len(old)] == old {
			out = append(out, new...)
			i += len(old)

			continue
		}

		out = append(out, s[i])
		i++
	}

	return string(out)
}

func dateToParts(args []any, _ *Context) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, ErrArity("$dateToParts", args)
	}

	if IsNullish(args[0]) {
		return nil, nil
	}

	t, ok := asDateTime(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$dateToParts requires a date")
	}

	iso := false

	if len(args) == 2 {
		if b, isBool := args[1].(bool); isBool {
			iso = b
		}
	}

	if iso {
		isoYear, isoWeek := t.ISOWeek()

		isoDay := int(t.Weekday())
		if isoDay == 0 {
			isoDay = 7
		}

		return types.NewDocument(
			"isoWeekYear", int32(isoYear),
			"isoWeek", int32(isoWeek),
			"isoDayOfWeek", int32(isoDay),
			"hour", int32(t.Hour()),
			"minute", int32(t.Minute()),
			"second", int32(t.Second()),
			"millisecond", int32(t.Nanosecond()/int(time.Millisecond)),
		)
	}

	return types.NewDocument(
		"year", int32(t.Year()),
		"month", int32(t.Month()),
		"day", int32(t.Day()),
		"hour", int32(t.Hour()),
		"minute", int32(t.Minute()),
		"second", int32(t.Second()),
		"millisecond", int32(t.Nanosecond()/int(time.Millisecond)),
	)
}

func dateAdd(args []any, _ *Context) (any, error) {
	return dateOffset(args, 1)
}

func dateSubtract(args []any, _ *Context) (any, error) {
	return dateOffset(args, -1)
}

func dateOffset(args []any, sign int64) (any, error) {
	if len(args) != 3 {
		return nil, ErrArity("date offset operator", args)
	}

	t, ok := asDateTime(args[0])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "date offset requires a date")
	}

	unit, ok := asString(args[1])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "date offset unit must be a string")
	}

	amount, ok := Numeric(args[2])
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "date offset amount must be numeric")
	}

	n := sign * int64(amount)

	var out time.Time

	switch unit {
	case "year":
		out = t.AddDate(int(n), 0, 0)
	case "quarter":
		out = t.AddDate(0, int(n)*3, 0)
	case "month":
		out = t.AddDate(0, int(n), 0)
	case "week":
		out = t.AddDate(0, 0, int(n)*7)
	case "day":
		out = t.AddDate(0, 0, int(n))
	case "hour":
		out = t.Add(time.Duration(n) * time.Hour)
	case "minute":
		out = t.Add(time.Duration(n) * time.Minute)
	case "second":
		out = t.Add(time.Duration(n) * time.Second)
	case "millisecond":
		out = t.Add(time.Duration(n) * time.Millisecond)
	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "date offset unit not recognized")
	}

	return bson.NewDateTimeFromTime(out), nil
}
