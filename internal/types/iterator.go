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

import "github.com/memagg/memagg/internal/util/iterator"

// DocumentsIterator is the iterator type threaded through every stage
// of the pipeline runtime: documents keyed by their position in the
// upstream, so stages can report "document 3 of the batch" without
// documents needing to be comparable.
type DocumentsIterator = iterator.Interface[int, *Document]
