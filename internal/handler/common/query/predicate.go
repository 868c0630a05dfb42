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

// Package query implements the query-predicate dialect: a distinct
// tagged sum from the expression language, compiled
// once from a raw spec document and then tested against every document
// a $match stage or a Query sees.
package query

import (
	"github.com/memagg/memagg/internal/collation"
	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/types"
)

// Predicate is a compiled query predicate. Every query form compiles
// to one of its implementations: fieldPredicate (equality, comparison,
// $in, $type, $regex, $mod, $all), existsPredicate, sizePredicate,
// elemMatchPredicate, and/or/nor/not, wherePredicate, exprPredicate,
// and alwaysPredicate for the empty spec.
type Predicate interface {
	Matches(doc *types.Document) (bool, error)
}

// Context carries the construction-time options Compile and the
// compiled Predicate need: collation for string comparisons, and the
// scripting capability for $where.
type Context struct {
	Collator      collation.Collator
	ScriptEnabled bool
	Script        func(source string, args []any) (any, error)
}

func (c *Context) evalContext() *aggregations.EvalContext {
	ec := &aggregations.EvalContext{Collator: c.collator(), IDKey: "_id"}

	if c != nil {
		ec.ScriptEnabled = c.ScriptEnabled
		ec.ScriptEvaluator = c.Script
	}

	return ec
}

func (c *Context) collator() collation.Collator {
	if c == nil || c.Collator == nil {
		return collation.Default
	}

	return c.Collator
}

// andPredicate requires every sub-predicate to match.
type andPredicate struct {
	preds []Predicate
}

func (p *andPredicate) Matches(doc *types.Document) (bool, error) {
	for _, sub := range p.preds {
		ok, err := sub.Matches(doc)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// orPredicate requires at least one sub-predicate to match.
type orPredicate struct {
	preds []Predicate
}

func (p *orPredicate) Matches(doc *types.Document) (bool, error) {
	for _, sub := range p.preds {
		ok, err := sub.Matches(doc)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// norPredicate requires that no sub-predicate matches.
type norPredicate struct {
	preds []Predicate
}

func (p *norPredicate) Matches(doc *types.Document) (bool, error) {
	ok, err := (&orPredicate{preds: p.preds}).Matches(doc)
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// notPredicate inverts a single sub-predicate.
type notPredicate struct {
	pred Predicate
}

func (p *notPredicate) Matches(doc *types.Document) (bool, error) {
	ok, err := p.pred.Matches(doc)
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// alwaysPredicate always returns a fixed verdict; used for the empty
// spec, which matches everything.
type alwaysPredicate struct {
	verdict bool
}

func (p *alwaysPredicate) Matches(*types.Document) (bool, error) {
	return p.verdict, nil
}
