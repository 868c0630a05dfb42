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
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/memagg/memagg/internal/handler/common/aggregations/operators"
	"github.com/memagg/memagg/internal/handler/commonpath"
	"github.com/memagg/memagg/internal/handler/handlererrors"
	"github.com/memagg/memagg/internal/types"
)

// leafTest is a single-value predicate applied at a path's resolved
// value, or to each element of that value when it is an Array: a
// non-array predicate compared to an array field succeeds if any
// element matches or the array itself equals the value.
type leafTest func(v any) (bool, error)

// fieldPredicate resolves path with the implicit array-mapping rule and
// applies test to the result, falling back to testing each array
// element when the whole-value test fails.
type fieldPredicate struct {
	path types.Path
	test leafTest
}

func (p *fieldPredicate) Matches(doc *types.Document) (bool, error) {
	v := commonpath.Resolve(doc, p.path)

	return matchValueOrElements(v, p.test)
}

func matchValueOrElements(v any, test leafTest) (bool, error) {
	ok, err := test(v)
	if err != nil {
		return false, err
	}

	if ok {
		return true, nil
	}

	arr, isArr := v.(*types.Array)
	if !isArr {
		return false, nil
	}

	for _, elem := range arr.Slice() {
		ok, err := test(elem)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// compileField compiles the predicate for one top-level field path:
// either a literal value (implicit equality, or implicit regex match
// when raw is itself a bson.Regex) or an operator document ({$gt: 5,
// $lt: 10}, implicitly ANDed).
func compileField(key string, raw any, ctx *Context) (Predicate, error) {
	path := types.NewPathFromString(key)

	if doc, ok := raw.(*types.Document); ok {
		for _, k := range doc.Keys() {
			if strings.HasPrefix(k, "$") {
				return compileOperatorDoc(path, doc, ctx)
			}
		}
	}

	if re, ok := raw.(bson.Regex); ok {
		test, err := regexTest(re.Pattern, re.Options)
		if err != nil {
			return nil, err
		}

		return &fieldPredicate{path: path, test: test}, nil
	}

	return &fieldPredicate{path: path, test: equalityTest(raw)}, nil
}

// looksLikeOperatorDoc reports whether every key of doc is a query
// operator name. compileField sends any document with at least one
// operator key to compileOperatorDoc, so a mix of operator and plain
// keys is rejected there as an unknown operator.
func looksLikeOperatorDoc(doc *types.Document) bool {
	if doc.Len() == 0 {
		return false
	}

	for _, k := range doc.Keys() {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}

	return true
}

func compileOperatorDoc(path types.Path, doc *types.Document, ctx *Context) (Predicate, error) {
	preds := make([]Predicate, 0, doc.Len())

	for _, op := range doc.Keys() {
		if op == "$options" {
			// consumed alongside $regex below
			continue
		}

		raw, _ := doc.Get(op)

		pred, err := compileOperator(path, op, raw, doc, ctx)
		if err != nil {
			return nil, err
		}

		if pred != nil {
			preds = append(preds, pred)
		}
	}

	if len(preds) == 1 {
		return preds[0], nil
	}

	return &andPredicate{preds: preds}, nil
}

func compileOperator(path types.Path, op string, raw any, parent *types.Document, ctx *Context) (Predicate, error) {
	switch op {
	case "$eq":
		return &fieldPredicate{path: path, test: equalityTest(raw)}, nil

	case "$ne":
		return &notPredicate{pred: &fieldPredicate{path: path, test: equalityTest(raw)}}, nil

	case "$gt", "$gte", "$lt", "$lte":
		return &fieldPredicate{path: path, test: compareTest(op, raw, ctx)}, nil

	case "$in":
		arr, ok := raw.(*types.Array)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$in requires an array")
		}

		return &fieldPredicate{path: path, test: inTest(arr)}, nil

	case "$nin":
		arr, ok := raw.(*types.Array)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$nin requires an array")
		}

		return &notPredicate{pred: &fieldPredicate{path: path, test: inTest(arr)}}, nil

	case "$exists":
		want, _ := raw.(bool)

		return &existsPredicate{path: path, want: want}, nil

	case "$type":
		return compileTypePredicate(path, raw)

	case "$size":
		n, ok := types.ToFloat64(raw)
		if !ok {
			return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$size requires a number")
		}

		return &sizePredicate{path: path, n: int(n)}, nil

	case "$mod":
		return compileModPredicate(path, raw)

	case "$regex":
		options := ""

		if rawOpts, err := parent.Get("$options"); err == nil {
			if s, ok := rawOpts.(string); ok {
				options = s
			}
		}

		pattern, ok := raw.(string)
		if !ok {
			if re, ok := raw.(bson.Regex); ok {
				pattern = re.Pattern

				if options == "" {
					options = re.Options
				}
			} else {
				return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$regex requires a string or regex")
			}
		}

		test, err := regexTest(pattern, options)
		if err != nil {
			return nil, err
		}

		return &fieldPredicate{path: path, test: test}, nil

	case "$not":
		return compileNot(path, raw, ctx)

	case "$elemMatch":
		return compileElemMatch(path, raw, ctx)

	case "$all":
		return compileAll(path, raw)

	default:
		return nil, handlererrors.NewCommandErrorMsgWithArgument(
			handlererrors.ErrOperatorInvalid, "unknown query operator", op,
		)
	}
}

func equalityTest(want any) leafTest {
	return func(v any) (bool, error) {
		return types.Compare(v, want) == types.Equal, nil
	}
}

func compareTest(op string, want any, ctx *Context) leafTest {
	var accept func(types.CompareResult) bool

	switch op {
	case "$gt":
		accept = func(c types.CompareResult) bool { return c == types.Greater }
	case "$gte":
		accept = func(c types.CompareResult) bool { return c != types.Less }
	case "$lt":
		accept = func(c types.CompareResult) bool { return c == types.Less }
	case "$lte":
		accept = func(c types.CompareResult) bool { return c != types.Greater }
	}

	return func(v any) (bool, error) {
		vs, vIsStr := v.(string)
		ws, wIsStr := want.(string)

		if vIsStr && wIsStr {
			return accept(collatorResult(ctx.collator().Compare(vs, ws))), nil
		}

		return accept(types.Compare(v, want)), nil
	}
}

func collatorResult(c int) types.CompareResult {
	switch {
	case c < 0:
		return types.Less
	case c > 0:
		return types.Greater
	default:
		return types.Equal
	}
}

func inTest(arr *types.Array) leafTest {
	return func(v any) (bool, error) {
		for _, want := range arr.Slice() {
			if re, ok := want.(bson.Regex); ok {
				test, err := regexTest(re.Pattern, re.Options)
				if err != nil {
					return false, err
				}

				if ok, _ := test(v); ok {
					return true, nil
				}

				continue
			}

			if types.Compare(v, want) == types.Equal {
				return true, nil
			}
		}

		return false, nil
	}
}

func regexTest(pattern, options string) (leafTest, error) {
	goPattern := "(?" + translateRegexOptions(options) + ")" + pattern
	if options == "" {
		goPattern = pattern
	}

	re, err := regexp.Compile(goPattern)
	if err != nil {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "invalid regular expression: "+err.Error())
	}

	return func(v any) (bool, error) {
		s, ok := v.(string)
		if !ok {
			return false, nil
		}

		return re.MatchString(s), nil
	}, nil
}

// translateRegexOptions maps MongoDB's regex option letters to Go
// RE2's inline flag letters; "x" (extended) has no RE2 equivalent and
// is dropped rather than rejected outright.
func translateRegexOptions(options string) string {
	var sb strings.Builder

	for _, r := range options {
		switch r {
		case 'i', 'm', 's':
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

type existsPredicate struct {
	path types.Path
	want bool
}

func (p *existsPredicate) Matches(doc *types.Document) (bool, error) {
	found, err := commonpath.FindValues(doc, p.path, &commonpath.FindValuesOpts{FindArrayIndex: true, SearchArray: true})
	if err != nil {
		return false, err
	}

	return (len(found) > 0) == p.want, nil
}

func compileTypePredicate(path types.Path, raw any) (Predicate, error) {
	names, err := typeNames(raw)
	if err != nil {
		return nil, err
	}

	return &fieldPredicate{path: path, test: func(v any) (bool, error) {
		name := operators.BSONTypeName(v)

		for _, n := range names {
			if n == name {
				return true, nil
			}
		}

		return false, nil
	}}, nil
}

func typeNames(raw any) ([]string, error) {
	switch v := raw.(type) {
	case *types.Array:
		names := make([]string, 0, v.Len())

		for _, e := range v.Slice() {
			name, err := typeCodeName(e)
			if err != nil {
				return nil, err
			}

			names = append(names, name)
		}

		return names, nil

	default:
		name, err := typeCodeName(v)
		if err != nil {
			return nil, err
		}

		return []string{name}, nil
	}
}

// typeAliases maps $type's numeric BSON type codes to the canonical
// name table operators.BSONTypeName reports.
var typeAliases = map[int64]string{
	1: "double", 2: "string", 3: "object", 4: "array", 5: "binData",
	6: "undefined", 7: "objectId", 8: "bool", 9: "date", 10: "null",
	11: "regex", 16: "int", 17: "timestamp", 18: "long", 19: "decimal",
}

func typeCodeName(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	default:
		if n, ok := types.ToFloat64(t); ok {
			name, ok := typeAliases[int64(n)]
			if !ok {
				return "", handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$type: unrecognized type code")
			}

			return name, nil
		}

		return "", handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$type: invalid type specifier")
	}
}

type sizePredicate struct {
	path types.Path
	n    int
}

func (p *sizePredicate) Matches(doc *types.Document) (bool, error) {
	v := commonpath.Resolve(doc, p.path)

	arr, ok := v.(*types.Array)
	if !ok {
		return false, nil
	}

	return arr.Len() == p.n, nil
}

func compileModPredicate(path types.Path, raw any) (Predicate, error) {
	arr, ok := raw.(*types.Array)
	if !ok || arr.Len() != 2 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$mod requires a 2-element array")
	}

	divRaw, _ := arr.Get(0)
	remRaw, _ := arr.Get(1)

	div, ok1 := types.ToFloat64(divRaw)
	rem, ok2 := types.ToFloat64(remRaw)

	if !ok1 || !ok2 || div == 0 {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$mod requires numeric divisor and remainder")
	}

	return &fieldPredicate{path: path, test: func(v any) (bool, error) {
		f, ok := types.ToFloat64(v)
		if !ok {
			return false, nil
		}

		return int64(f)%int64(div) == int64(rem), nil
	}}, nil
}

func compileNot(path types.Path, raw any, ctx *Context) (Predicate, error) {
	switch v := raw.(type) {
	case *types.Document:
		inner, err := compileOperatorDoc(path, v, ctx)
		if err != nil {
			return nil, err
		}

		return &notPredicate{pred: inner}, nil

	case bson.Regex:
		test, err := regexTest(v.Pattern, v.Options)
		if err != nil {
			return nil, err
		}

		return &notPredicate{pred: &fieldPredicate{path: path, test: test}}, nil

	default:
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$not requires an operator document or regex")
	}
}

// compileElemMatch compiles $elemMatch's two forms: a
// "query" form (sub-spec's keys are plain field names, evaluated by
// treating each array element as a document) and a "value" form
// (sub-spec's keys are all operators, evaluated directly against each
// scalar element, as a field-less operator test).
func compileElemMatch(path types.Path, raw any, ctx *Context) (Predicate, error) {
	sub, ok := raw.(*types.Document)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$elemMatch requires a document")
	}

	test, err := CompileElemTest(sub, ctx)
	if err != nil {
		return nil, err
	}

	return &elemMatchPredicate{path: path, elemTest: test}, nil
}

// CompileElemTest compiles an $elemMatch sub-spec into a per-element
// test, shared between the query operator and the $elemMatch projection
// operator.
func CompileElemTest(sub *types.Document, ctx *Context) (func(elem any) (bool, error), error) {
	if looksLikeOperatorDoc(sub) {
		elemPath := types.NewPathFromString("_elem")

		valuePred, err := compileOperatorDoc(elemPath, sub, ctx)
		if err != nil {
			return nil, err
		}

		return func(elem any) (bool, error) {
			wrapper, err := types.NewDocument("_elem", elem)
			if err != nil {
				return false, err
			}

			return valuePred.Matches(wrapper)
		}, nil
	}

	subPred, err := Compile(sub, ctx)
	if err != nil {
		return nil, err
	}

	return func(elem any) (bool, error) {
		doc, ok := elem.(*types.Document)
		if !ok {
			return false, nil
		}

		return subPred.Matches(doc)
	}, nil
}

type elemMatchPredicate struct {
	path     types.Path
	elemTest func(elem any) (bool, error)
}

func (p *elemMatchPredicate) Matches(doc *types.Document) (bool, error) {
	v := commonpath.Resolve(doc, p.path)

	arr, ok := v.(*types.Array)
	if !ok {
		return false, nil
	}

	for _, elem := range arr.Slice() {
		ok, err := p.elemTest(elem)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

func compileAll(path types.Path, raw any) (Predicate, error) {
	arr, ok := raw.(*types.Array)
	if !ok {
		return nil, handlererrors.NewCommandErrorMsg(handlererrors.ErrBadValue, "$all requires an array")
	}

	wants := arr.Slice()

	return &fieldPredicate{path: path, test: func(v any) (bool, error) {
		elems, ok := v.(*types.Array)
		if !ok {
			return false, nil
		}

		for _, want := range wants {
			found := false

			for _, elem := range elems.Slice() {
				if types.Compare(elem, want) == types.Equal {
					found = true

					break
				}
			}

			if !found {
				return false, nil
			}
		}

		return true, nil
	}}, nil
}
