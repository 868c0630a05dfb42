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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memagg/memagg/internal/types"
	"github.com/memagg/memagg/internal/util/must"
)

func kvDocs(pairs ...[2]int64) []*types.Document {
	out := make([]*types.Document, len(pairs))

	for i, p := range pairs {
		out[i] = must.NotFail(types.NewDocument("k", p[0], "v", p[1]))
	}

	return out
}

func TestGroupStage(t *testing.T) {
	t.Parallel()

	t.Run("SumPerKey", func(t *testing.T) {
		t.Parallel()

		docs := kvDocs([2]int64{1, 10}, [2]int64{1, 20}, [2]int64{2, 30})

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", "$k",
			"s", must.NotFail(types.NewDocument("$sum", "$v")),
		))))

		// Emission order is first-occurrence here, but the contract is
		// only "one document per distinct _id".
		require.Len(t, got, 2)

		byID := map[int64]int64{}
		for _, d := range got {
			byID[must.NotFail(d.Get("_id")).(int64)] = must.NotFail(d.Get("s")).(int64)
		}

		assert.Equal(t, map[int64]int64{1: 30, 2: 30}, byID)
	})

	t.Run("SumOfDoublesWithIntegralTotal", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("v", 1.5)),
			must.NotFail(types.NewDocument("v", 1.5)),
		}

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", types.Null,
			"s", must.NotFail(types.NewDocument("$sum", "$v")),
		))))

		require.Len(t, got, 1)
		assert.Equal(t, 3.0, must.NotFail(got[0].Get("s")), "a double input keeps the sum a double")
	})

	t.Run("SumMixedIntAndDouble", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("v", int64(1))),
			must.NotFail(types.NewDocument("v", 2.0)),
		}

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", types.Null,
			"s", must.NotFail(types.NewDocument("$sum", "$v")),
		))))

		require.Len(t, got, 1)
		assert.Equal(t, 3.0, must.NotFail(got[0].Get("s")))
	})

	t.Run("FirstOfAbsentFieldOmitsKey", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("other", int64(1))),
			must.NotFail(types.NewDocument("v", int64(2))),
		}

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", types.Null,
			"f", must.NotFail(types.NewDocument("$first", "$v")),
			"l", must.NotFail(types.NewDocument("$last", "$v")),
		))))

		require.Len(t, got, 1)
		assert.False(t, got[0].Has("f"), "$first saw a missing field")
		assert.Equal(t, int64(2), must.NotFail(got[0].Get("l")))
	})

	t.Run("NumericIDsCollapseAcrossRepresentations", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("k", int64(1))),
			must.NotFail(types.NewDocument("k", 1.0)),
			must.NotFail(types.NewDocument("k", int32(1))),
		}

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", "$k",
			"n", must.NotFail(types.NewDocument("$sum", int32(1))),
		))))

		require.Len(t, got, 1)
		assert.Equal(t, int64(3), must.NotFail(got[0].Get("n")))
		assert.Equal(t, int64(1), must.NotFail(got[0].Get("_id")), "first occurrence's tag is preserved")
	})

	t.Run("MissingKeyGroupsUnderNull", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("other", int32(1))),
			must.NotFail(types.NewDocument("k", types.Null)),
		}

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", "$k",
			"n", must.NotFail(types.NewDocument("$sum", int32(1))),
		))))

		require.Len(t, got, 1)
		assert.Equal(t, types.Null, must.NotFail(got[0].Get("_id")))
		assert.Equal(t, int64(2), must.NotFail(got[0].Get("n")))
	})

	t.Run("Accumulators", func(t *testing.T) {
		t.Parallel()

		docs := kvDocs([2]int64{1, 4}, [2]int64{1, 2}, [2]int64{1, 2}, [2]int64{1, 8})

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", types.Null,
			"avg", must.NotFail(types.NewDocument("$avg", "$v")),
			"min", must.NotFail(types.NewDocument("$min", "$v")),
			"max", must.NotFail(types.NewDocument("$max", "$v")),
			"first", must.NotFail(types.NewDocument("$first", "$v")),
			"last", must.NotFail(types.NewDocument("$last", "$v")),
			"all", must.NotFail(types.NewDocument("$push", "$v")),
			"distinct", must.NotFail(types.NewDocument("$addToSet", "$v")),
			"sd", must.NotFail(types.NewDocument("$stdDevPop", "$v")),
		))))

		require.Len(t, got, 1)
		d := got[0]

		assert.Equal(t, 4.0, must.NotFail(d.Get("avg")))
		assert.Equal(t, int64(2), must.NotFail(d.Get("min")))
		assert.Equal(t, int64(8), must.NotFail(d.Get("max")))
		assert.Equal(t, int64(4), must.NotFail(d.Get("first")))
		assert.Equal(t, int64(8), must.NotFail(d.Get("last")))

		all := must.NotFail(d.Get("all")).(*types.Array)
		assert.Equal(t, types.Equal, types.Compare(all, must.NotFail(types.NewArray(int64(4), int64(2), int64(2), int64(8)))))

		distinct := must.NotFail(d.Get("distinct")).(*types.Array)
		assert.Equal(t, types.Equal, types.Compare(distinct, must.NotFail(types.NewArray(int64(4), int64(2), int64(8)))))

		// Population stddev of 4,2,2,8 is sqrt(6).
		assert.InDelta(t, math.Sqrt(6), must.NotFail(d.Get("sd")).(float64), 1e-9)
	})

	t.Run("MergeObjectsAccumulator", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("o", must.NotFail(types.NewDocument("a", int32(1), "b", int32(1))))),
			must.NotFail(types.NewDocument("o", must.NotFail(types.NewDocument("b", int32(2))))),
		}

		got := runPipeline(t, testCtx(), docs, stage("$group", must.NotFail(types.NewDocument(
			"_id", types.Null,
			"merged", must.NotFail(types.NewDocument("$mergeObjects", "$o")),
		))))

		require.Len(t, got, 1)

		expected := must.NotFail(types.NewDocument("a", int32(1), "b", int32(2)))
		assert.Equal(t, types.Equal, types.Compare(must.NotFail(got[0].Get("merged")), expected))
	})

	t.Run("MissingIDSpecRejected", func(t *testing.T) {
		t.Parallel()

		_, err := Build(must.NotFail(types.NewArray(stage("$group", must.NotFail(types.NewDocument(
			"s", must.NotFail(types.NewDocument("$sum", "$v")),
		))))), testCtx())
		require.Error(t, err)
	})

	t.Run("NonUnaryAccumulatorRejected", func(t *testing.T) {
		t.Parallel()

		_, err := Build(must.NotFail(types.NewArray(stage("$group", must.NotFail(types.NewDocument(
			"_id", types.Null,
			"s", int32(1),
		))))), testCtx())
		require.Error(t, err)
	})

	t.Run("UnknownAccumulatorRejected", func(t *testing.T) {
		t.Parallel()

		_, err := Build(must.NotFail(types.NewArray(stage("$group", must.NotFail(types.NewDocument(
			"_id", types.Null,
			"s", must.NotFail(types.NewDocument("$frobnicate", "$v")),
		))))), testCtx())
		require.Error(t, err)
	})
}

func TestBucketStage(t *testing.T) {
	t.Parallel()

	docs := []*types.Document{
		must.NotFail(types.NewDocument("price", int64(5))),
		must.NotFail(types.NewDocument("price", int64(15))),
		must.NotFail(types.NewDocument("price", int64(12))),
		must.NotFail(types.NewDocument("price", int64(99))),
	}

	t.Run("PartitionsWithDefault", func(t *testing.T) {
		t.Parallel()

		got := runPipeline(t, testCtx(), docs, stage("$bucket", must.NotFail(types.NewDocument(
			"groupBy", "$price",
			"boundaries", must.NotFail(types.NewArray(int64(0), int64(10), int64(20))),
			"default", "other",
		))))

		require.Len(t, got, 3)

		byID := map[string]int64{}
		for _, d := range got {
			id := must.NotFail(d.Get("_id"))
			count := must.NotFail(d.Get("count")).(int64)
			byID[types.CanonicalKey(id)] = count
		}

		assert.Equal(t, int64(1), byID[types.CanonicalKey(int64(0))])
		assert.Equal(t, int64(2), byID[types.CanonicalKey(int64(10))])
		assert.Equal(t, int64(1), byID[types.CanonicalKey("other")])
	})

	t.Run("NoDefaultOutOfRangeFails", func(t *testing.T) {
		t.Parallel()

		pipeline := must.NotFail(types.NewArray(stage("$bucket", must.NotFail(types.NewDocument(
			"groupBy", "$price",
			"boundaries", must.NotFail(types.NewArray(int64(0), int64(10))),
		)))))

		built, err := Build(pipeline, testCtx())
		require.NoError(t, err)

		_, _, err = Chain(sliceDocsIterator(docs), built)
		require.Error(t, err, "$bucket blocks, so the failure surfaces when the chain first drains")
	})

	t.Run("CustomOutput", func(t *testing.T) {
		t.Parallel()

		got := runPipeline(t, testCtx(), docs, stage("$bucket", must.NotFail(types.NewDocument(
			"groupBy", "$price",
			"boundaries", must.NotFail(types.NewArray(int64(0), int64(100))),
			"output", must.NotFail(types.NewDocument(
				"total", must.NotFail(types.NewDocument("$sum", "$price")),
				"prices", must.NotFail(types.NewDocument("$push", "$price")),
			)),
		))))

		require.Len(t, got, 1)
		assert.Equal(t, int64(131), must.NotFail(got[0].Get("total")))
	})

	t.Run("DoubleOutputSums", func(t *testing.T) {
		t.Parallel()

		doubles := []*types.Document{
			must.NotFail(types.NewDocument("price", 10.0)),
			must.NotFail(types.NewDocument("price", 20.0)),
		}

		got := runPipeline(t, testCtx(), doubles, stage("$bucket", must.NotFail(types.NewDocument(
			"groupBy", "$price",
			"boundaries", must.NotFail(types.NewArray(int64(0), int64(100))),
			"output", must.NotFail(types.NewDocument(
				"total", must.NotFail(types.NewDocument("$sum", "$price")),
			)),
		))))

		require.Len(t, got, 1)
		assert.Equal(t, 30.0, must.NotFail(got[0].Get("total")), "double inputs sum to a double")
	})
}

func TestBucketAutoStage(t *testing.T) {
	t.Parallel()

	t.Run("BoundariesChain", func(t *testing.T) {
		t.Parallel()

		var docs []*types.Document
		for i := 1; i <= 6; i++ {
			docs = append(docs, must.NotFail(types.NewDocument("_id", int64(i))))
		}

		got := runPipeline(t, testCtx(), docs, stage("$bucketAuto", must.NotFail(types.NewDocument(
			"groupBy", "$_id",
			"buckets", int32(3),
		))))

		require.Len(t, got, 3)

		total := int64(0)

		for i, d := range got {
			id := must.NotFail(d.Get("_id")).(*types.Document)
			total += must.NotFail(d.Get("count")).(int64)

			if i+1 < len(got) {
				next := must.NotFail(got[i+1].Get("_id")).(*types.Document)
				assert.Equal(t, types.Equal, types.Compare(
					must.NotFail(id.Get("max")),
					must.NotFail(next.Get("min")),
				), "adjacent boundaries chain")
			}
		}

		assert.Equal(t, int64(6), total)

		first := must.NotFail(got[0].Get("_id")).(*types.Document)
		last := must.NotFail(got[2].Get("_id")).(*types.Document)
		assert.Equal(t, int64(1), must.NotFail(first.Get("min")))
		assert.Equal(t, int64(6), must.NotFail(last.Get("max")), "final max is the greatest observed key")
	})

	t.Run("EqualKeysNeverSplit", func(t *testing.T) {
		t.Parallel()

		// Eight documents, five of them sharing key 1: a naive
		// two-per-chunk split would cut inside the run.
		var docs []*types.Document
		for _, k := range []int64{1, 1, 1, 1, 1, 2, 3, 4} {
			docs = append(docs, must.NotFail(types.NewDocument("k", k)))
		}

		got := runPipeline(t, testCtx(), docs, stage("$bucketAuto", must.NotFail(types.NewDocument(
			"groupBy", "$k",
			"buckets", int32(4),
		))))

		firstCount := must.NotFail(got[0].Get("count")).(int64)
		assert.GreaterOrEqual(t, firstCount, int64(5), "the run of equal keys stays in one bucket")

		total := int64(0)
		for _, d := range got {
			total += must.NotFail(d.Get("count")).(int64)
		}

		assert.Equal(t, int64(8), total, "every input lands in exactly one bucket")
	})

	t.Run("AtMostNBuckets", func(t *testing.T) {
		t.Parallel()

		var docs []*types.Document
		for i := 1; i <= 10; i++ {
			docs = append(docs, must.NotFail(types.NewDocument("k", int64(i))))
		}

		got := runPipeline(t, testCtx(), docs, stage("$bucketAuto", must.NotFail(types.NewDocument(
			"groupBy", "$k",
			"buckets", int32(3),
		))))

		assert.LessOrEqual(t, len(got), 3, "never more than N buckets")
	})

	t.Run("NonPositiveBucketsRejected", func(t *testing.T) {
		t.Parallel()

		_, err := Build(must.NotFail(types.NewArray(stage("$bucketAuto", must.NotFail(types.NewDocument(
			"groupBy", "$k",
			"buckets", int32(0),
		))))), testCtx())
		require.Error(t, err)
	})

	t.Run("UnknownGranularityRejected", func(t *testing.T) {
		t.Parallel()

		_, err := Build(must.NotFail(types.NewArray(stage("$bucketAuto", must.NotFail(types.NewDocument(
			"groupBy", "$k",
			"buckets", int32(2),
			"granularity", "R7",
		))))), testCtx())
		require.Error(t, err)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		t.Parallel()

		got := runPipeline(t, testCtx(), nil, stage("$bucketAuto", must.NotFail(types.NewDocument(
			"groupBy", "$k",
			"buckets", int32(3),
		))))
		assert.Empty(t, got)
	})
}

func TestFacetStage(t *testing.T) {
	t.Parallel()

	docs := kvDocs([2]int64{1, 10}, [2]int64{2, 20}, [2]int64{1, 30})

	got := runPipeline(t, testCtx(), docs, stage("$facet", must.NotFail(types.NewDocument(
		"totals", must.NotFail(types.NewArray(
			stage("$group", must.NotFail(types.NewDocument(
				"_id", "$k",
				"s", must.NotFail(types.NewDocument("$sum", "$v")),
			))),
		)),
		"firstTwo", must.NotFail(types.NewArray(
			stage("$limit", int32(2)),
		)),
	))))

	require.Len(t, got, 1)
	out := got[0]

	assert.Equal(t, []string{"totals", "firstTwo"}, out.Keys(), "facets emit in spec key order")

	totals := must.NotFail(out.Get("totals")).(*types.Array)
	assert.Equal(t, 2, totals.Len())

	firstTwo := must.NotFail(out.Get("firstTwo")).(*types.Array)
	require.Equal(t, 2, firstTwo.Len())
	assert.Equal(t, types.Equal, types.Compare(must.NotFail(firstTwo.Get(0)), docs[0]))
}

func TestSetWindowFieldsStage(t *testing.T) {
	t.Parallel()

	t.Run("RunningTotalPerPartition", func(t *testing.T) {
		t.Parallel()

		docs := []*types.Document{
			must.NotFail(types.NewDocument("g", "a", "v", int64(1))),
			must.NotFail(types.NewDocument("g", "b", "v", int64(10))),
			must.NotFail(types.NewDocument("g", "a", "v", int64(2))),
			must.NotFail(types.NewDocument("g", "b", "v", int64(20))),
		}

		got := runPipeline(t, testCtx(), docs, stage("$setWindowFields", must.NotFail(types.NewDocument(
			"partitionBy", "$g",
			"sortBy", must.NotFail(types.NewDocument("v", int32(1))),
			"output", must.NotFail(types.NewDocument(
				"running", must.NotFail(types.NewDocument(
					"$sum", "$v",
					"window", must.NotFail(types.NewDocument(
						"documents", must.NotFail(types.NewArray("unbounded", "current")),
					)),
				)),
			)),
		))))

		require.Len(t, got, 4)

		running := func(i int) int64 {
			return must.NotFail(got[i].Get("running")).(int64)
		}

		// Partition "a" first (first-occurrence order), sorted by v.
		assert.Equal(t, int64(1), running(0))
		assert.Equal(t, int64(3), running(1))
		assert.Equal(t, int64(10), running(2))
		assert.Equal(t, int64(30), running(3))
	})

	t.Run("WholePartitionWithoutWindow", func(t *testing.T) {
		t.Parallel()

		docs := kvDocs([2]int64{1, 1}, [2]int64{1, 2}, [2]int64{1, 3})

		got := runPipeline(t, testCtx(), docs, stage("$setWindowFields", must.NotFail(types.NewDocument(
			"output", must.NotFail(types.NewDocument(
				"total", must.NotFail(types.NewDocument("$sum", "$v")),
			)),
		))))

		for _, d := range got {
			assert.Equal(t, int64(6), must.NotFail(d.Get("total")))
		}
	})

	t.Run("DocumentOffsets", func(t *testing.T) {
		t.Parallel()

		docs := kvDocs([2]int64{1, 1}, [2]int64{1, 2}, [2]int64{1, 3}, [2]int64{1, 4})

		got := runPipeline(t, testCtx(), docs, stage("$setWindowFields", must.NotFail(types.NewDocument(
			"sortBy", must.NotFail(types.NewDocument("v", int32(1))),
			"output", must.NotFail(types.NewDocument(
				"nearby", must.NotFail(types.NewDocument(
					"$sum", "$v",
					"window", must.NotFail(types.NewDocument(
						"documents", must.NotFail(types.NewArray(int32(-1), int32(1))),
					)),
				)),
			)),
		))))

		vals := make([]int64, len(got))
		for i, d := range got {
			vals[i] = must.NotFail(d.Get("nearby")).(int64)
		}

		assert.Equal(t, []int64{3, 6, 9, 7}, vals)
	})

	t.Run("RangeWindow", func(t *testing.T) {
		t.Parallel()

		docs := kvDocs([2]int64{1, 1}, [2]int64{1, 2}, [2]int64{1, 10})

		got := runPipeline(t, testCtx(), docs, stage("$setWindowFields", must.NotFail(types.NewDocument(
			"sortBy", must.NotFail(types.NewDocument("v", int32(1))),
			"output", must.NotFail(types.NewDocument(
				"close", must.NotFail(types.NewDocument(
					"$sum", "$v",
					"window", must.NotFail(types.NewDocument(
						"range", must.NotFail(types.NewArray(int32(-1), int32(1))),
					)),
				)),
			)),
		))))

		vals := make([]int64, len(got))
		for i, d := range got {
			vals[i] = must.NotFail(d.Get("close")).(int64)
		}

		// v=1 sees {1,2}; v=2 sees {1,2}; v=10 sees only itself.
		assert.Equal(t, []int64{3, 3, 10}, vals)
	})

	t.Run("RangeWindowNeedsSingleSortKey", func(t *testing.T) {
		t.Parallel()

		_, err := Build(must.NotFail(types.NewArray(stage("$setWindowFields", must.NotFail(types.NewDocument(
			"output", must.NotFail(types.NewDocument(
				"x", must.NotFail(types.NewDocument(
					"$sum", "$v",
					"window", must.NotFail(types.NewDocument(
						"range", must.NotFail(types.NewArray(int32(-1), int32(1))),
					)),
				)),
			)),
		))))), testCtx())
		require.Error(t, err)
	})

	t.Run("CountSugar", func(t *testing.T) {
		t.Parallel()

		docs := kvDocs([2]int64{1, 1}, [2]int64{1, 2})

		got := runPipeline(t, testCtx(), docs, stage("$setWindowFields", must.NotFail(types.NewDocument(
			"output", must.NotFail(types.NewDocument(
				"n", must.NotFail(types.NewDocument("$count", must.NotFail(types.NewDocument()))),
			)),
		))))

		for _, d := range got {
			assert.Equal(t, int64(2), must.NotFail(d.Get("n")))
		}
	})
}
