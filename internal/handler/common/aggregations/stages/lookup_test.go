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

package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memagg/memagg/internal/handler/common/aggregations"
	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/must"
)

func lookupCtx() *Context {
	orders := []*types.Document{
		must.NotFail(types.NewDocument("_id", int64(1), "cust", "ada", "total", int64(10))),
		must.NotFail(types.NewDocument("_id", int64(2), "cust", "bob", "total", int64(20))),
		must.NotFail(types.NewDocument("_id", int64(3), "cust", "ada", "total", int64(30))),
	}

	staff := []*types.Document{
		must.NotFail(types.NewDocument("_id", "ada", "reportsTo", "bob")),
		must.NotFail(types.NewDocument("_id", "bob", "reportsTo", "eve")),
		must.NotFail(types.NewDocument("_id", "eve")),
	}

	return &Context{
		Eval: aggregations.DefaultEvalContext(),
		Collections: map[string][]*types.Document{
			"orders": orders,
			"staff":  staff,
		},
	}
}

func TestLookupStage(t *testing.T) {
	t.Parallel()

	t.Run("EqualityJoin", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("name", "ada")),
			must.NotFail(types.NewDocument("name", "carol")),
		}

		got := runPipeline(t, lookupCtx(), docs, stage("$lookup", must.NotFail(types.NewDocument(
			"from", "orders",
			"localField", "name",
			"foreignField", "cust",
			"as", "orders",
		))))

		require.Len(t, got, 2)

		adaOrders := must.NotFail(got[0].Get("orders")).(*types.Array)
		require.Equal(t, 2, adaOrders.Len())

		first := must.NotFail(adaOrders.Get(0)).(*types.Document)
		assert.Equal(t, int64(10), must.NotFail(first.Get("total")))

		carolOrders := must.NotFail(got[1].Get("orders")).(*types.Array)
		assert.Zero(t, carolOrders.Len(), "no match attaches an empty array")
	})

	t.Run("ArrayLocalField", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("names", must.NotFail(types.NewArray("ada", "bob")))),
		}

		got := runPipeline(t, lookupCtx(), docs, stage("$lookup", must.NotFail(types.NewDocument(
			"from", "orders",
			"localField", "names",
			"foreignField", "cust",
			"as", "matched",
		))))

		matched := must.NotFail(got[0].Get("matched")).(*types.Array)
		assert.Equal(t, 3, matched.Len(), "any element of a local array joins")
	})

	t.Run("PipelineForm", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{must.NotFail(types.NewDocument("limit", int64(15)))}

		got := runPipeline(t, lookupCtx(), docs, stage("$lookup", must.NotFail(types.NewDocument(
			"from", "orders",
			"let", must.NotFail(types.NewDocument("max", "$limit")),
			"pipeline", must.NotFail(types.NewArray(
				stage("$match", must.NotFail(types.NewDocument(
					"$expr", must.NotFail(types.NewDocument(
						"$lt", must.NotFail(types.NewArray("$total", "$$max")),
					)),
				))),
			)),
			"as", "small",
		))))

		small := must.NotFail(got[0].Get("small")).(*types.Array)
		require.Equal(t, 1, small.Len())

		only := must.NotFail(small.Get(0)).(*types.Document)
		assert.Equal(t, int64(10), must.NotFail(only.Get("total")))
	})

	t.Run("PipelineWithoutLet", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{must.NotFail(types.NewDocument("x", int64(1)))}

		got := runPipeline(t, lookupCtx(), docs, stage("$lookup", must.NotFail(types.NewDocument(
			"from", "orders",
			"pipeline", must.NotFail(types.NewArray(
				stage("$sort", must.NotFail(types.NewDocument("total", int32(-1)))),
				stage("$limit", int32(1)),
			)),
			"as", "top",
		))))

		top := must.NotFail(got[0].Get("top")).(*types.Array)
		require.Equal(t, 1, top.Len())

		best := must.NotFail(top.Get(0)).(*types.Document)
		assert.Equal(t, int64(30), must.NotFail(best.Get("total")))
	})

	t.Run("MissingFormsRejected", func(t *testing.T) {
		t.Parallel()

		_, err := Build(must.NotFail(types.NewArray(stage("$lookup", must.NotFail(types.NewDocument(
			"from", "orders",
			"as", "x",
		))))), testCtx())
		require.Error(t, err)
	})
}

func TestGraphLookupStage(t *testing.T) {
	t.Parallel()

	t.Run("TraversesChain", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{must.NotFail(types.NewDocument("who", "ada"))}

		got := runPipeline(t, lookupCtx(), docs, stage("$graphLookup", must.NotFail(types.NewDocument(
			"from", "staff",
			"startWith", "$who",
			"connectFromField", "reportsTo",
			"connectToField", "_id",
			"as", "chain",
			"depthField", "depth",
		))))

		chain := must.NotFail(got[0].Get("chain")).(*types.Array)
		require.Equal(t, 3, chain.Len(), "ada, bob, eve")

		first := must.NotFail(chain.Get(0)).(*types.Document)
		assert.Equal(t, "ada", must.NotFail(first.Get("_id")))
		assert.Equal(t, int64(0), must.NotFail(first.Get("depth")))

		last := must.NotFail(chain.Get(2)).(*types.Document)
		assert.Equal(t, "eve", must.NotFail(last.Get("_id")))
		assert.Equal(t, int64(2), must.NotFail(last.Get("depth")))
	})

	t.Run("MaxDepthBounds", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{must.NotFail(types.NewDocument("who", "ada"))}

		got := runPipeline(t, lookupCtx(), docs, stage("$graphLookup", must.NotFail(types.NewDocument(
			"from", "staff",
			"startWith", "$who",
			"connectFromField", "reportsTo",
			"connectToField", "_id",
			"as", "chain",
			"maxDepth", int32(0),
		))))

		chain := must.NotFail(got[0].Get("chain")).(*types.Array)
		assert.Equal(t, 1, chain.Len(), "maxDepth 0 keeps only the starting matches")
	})

	t.Run("CycleTerminates", func(t *testing.T) {
		t.Parallel()

		loop := []*types.Document{
			must.NotFail(types.NewDocument("_id", "x", "next", "y")),
			must.NotFail(types.NewDocument("_id", "y", "next", "x")),
		}

		ctx := lookupCtx()
		ctx.Collections["loop"] = loop

		docs := []*types.Document{must.NotFail(types.NewDocument("start", "x"))}

		got := runPipeline(t, ctx, docs, stage("$graphLookup", must.NotFail(types.NewDocument(
			"from", "loop",
			"startWith", "$start",
			"connectFromField", "next",
			"connectToField", "_id",
			"as", "seen",
		))))

		seen := must.NotFail(got[0].Get("seen")).(*types.Array)
		assert.Equal(t, 2, seen.Len(), "cycle detection stops the walk")
	})
}

func TestOutMergeStages(t *testing.T) {
	t.Parallel()

	docs := kvDocs([2]int64{1, 10}, [2]int64{2, 20})

	t.Run("OutDeliversToSink", func(t *testing.T) {
		t.Parallel()

		var sunk []*types.Document
		var sunkName string

		ctx := testCtx()
		ctx.Sink = func(collection string, out []*types.Document) error {
			sunkName = collection
			sunk = out

			return nil
		}

		got := runPipeline(t, ctx, docs, stage("$out", "results"))

		assert.Equal(t, "results", sunkName)
		assertDocsEqual(t, docs, sunk)
		assertDocsEqual(t, docs, got)
	})

	t.Run("MergeDocumentForm", func(t *testing.T) {
		t.Parallel()

		var sunkName string

		ctx := testCtx()
		ctx.Sink = func(collection string, _ []*types.Document) error {
			sunkName = collection

			return nil
		}

		_ = runPipeline(t, ctx, docs, stage("$merge", must.NotFail(types.NewDocument("into", "dst"))))
		assert.Equal(t, "dst", sunkName)
	})

	t.Run("NoSinkIsPassThrough", func(t *testing.T) {
		t.Parallel()

		got := runPipeline(t, testCtx(), docs, stage("$out", "void"))
		assertDocsEqual(t, docs, got)
	})
}
