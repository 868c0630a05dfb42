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

// Package aggregations implements the recursive expression evaluator
//: Expression is a tagged sum built once at construction
// time from a raw Value and then evaluated against a per-document
// Frame. The operator catalog itself lives in the operators
// subpackage; this package only knows how to walk the tree and when to
// short-circuit.
package aggregations

import (
	"github.com/memagg/memagg/internal/collation"
	"github.com/memagg/memagg/internal/handler/common/aggregations/operators"
)

// EvalContext carries the construction-time options that don't change
// document to document: collation, the identity field name, and the
// script-execution capability hook.
type EvalContext struct {
	Collator        collation.Collator
	IDKey           string
	ScriptEnabled   bool
	ScriptEvaluator func(source string, args []any) (any, error)

	// Variables pre-populates "$$vars" bindings, e.g. for $lookup's
	// "let".
	Variables map[string]any
}

// ToOperatorsContext adapts EvalContext to the narrower context the
// leaf operator catalog needs.
func (c *EvalContext) ToOperatorsContext() *operators.Context {
	return &operators.Context{Collator: c.Collator, IDKey: c.IDKey}
}

// DefaultEvalContext returns an EvalContext with byte-order collation,
// "_id" as the identity field, and scripting disabled.
func DefaultEvalContext() *EvalContext {
	return &EvalContext{Collator: collation.Default, IDKey: "_id"}
}
