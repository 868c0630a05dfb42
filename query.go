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

package memagg

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memagg/memagg/internal/handler/common/query"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/iterator"
)

// Query is a compiled query predicate. Compilation happens once, in
// NewQuery; a Query is then reusable (and safe for sequential reuse)
// against any number of document sequences.
type Query struct {
	pred query.Predicate
	opts *Options
	id   uuid.UUID
}

// NewQuery compiles filter into a Query. Malformed filters (unknown
// operators, wrong operand shapes, $where without scripting) are
// rejected here, not at match time.
func NewQuery(filter *Document, opts *Options) (*Query, error) {
	c, err := opts.collator()
	if err != nil {
		return nil, err
	}

	qctx := &query.Context{Collator: c}

	if opts != nil {
		qctx.ScriptEnabled = opts.ScriptEnabled
		qctx.Script = opts.ScriptEvaluator
	}

	pred, err := query.Compile(filter, qctx)
	if err != nil {
		return nil, err
	}

	q := &Query{pred: pred, opts: opts, id: uuid.New()}

	opts.logger().Debug("query compiled",
		zap.String("query", q.id.String()),
		zap.Int("filter_fields", filter.Len()),
	)

	return q, nil
}

// Test reports whether doc satisfies the query.
func (q *Query) Test(doc *Document) (bool, error) {
	return q.pred.Matches(doc)
}

// Find returns a lazy sequence of the documents in docs that satisfy
// the query, in input order.
func (q *Query) Find(docs []*Document) DocumentsIterator {
	return q.filter(docs, true)
}

// Remove returns the complement of Find: the documents that do NOT
// satisfy the query, in input order.
func (q *Query) Remove(docs []*Document) DocumentsIterator {
	return q.filter(docs, false)
}

func (q *Query) filter(docs []*Document, keep bool) DocumentsIterator {
	upstream := ingress(docs, q.opts.mode())

	return iterator.ForFunc(func() (int, *types.Document, error) {
		for {
			i, doc, err := upstream.Next()
			if err != nil {
				return 0, nil, err
			}

			ok, err := q.pred.Matches(doc)
			if err != nil {
				return 0, nil, err
			}

			if ok == keep {
				return i, doc, nil
			}
		}
	})
}
