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
	"fmt"

	"github.com/memagg/memagg/internal/util/lazyerrors"
)

// Document is an insertion-ordered mapping from string keys to Values.
// Key order is significant: it is observable through $project and is
// preserved through every transformation that doesn't explicitly
// reorder.
type Document struct {
	keys []string
	m    map[string]any
}

// NewDocument creates a Document from alternating key/value pairs, in
// the order given.
func NewDocument(pairs ...any) (*Document, error) {
	if len(pairs)%2 != 0 {
		return nil, lazyerrors.Errorf("types.NewDocument: odd number of arguments: %d", len(pairs))
	}

	doc := new(Document)

	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, lazyerrors.Errorf("types.NewDocument: invalid key type: %T", pairs[i])
		}

		if err := doc.Set(key, pairs[i+1]); err != nil {
			return nil, lazyerrors.Errorf("types.NewDocument: %w", err)
		}
	}

	return doc, nil
}

// MustNewDocument is like NewDocument, but panics on error. Intended
// for tests and fixture construction.
func MustNewDocument(pairs ...any) *Document {
	doc, err := NewDocument(pairs...)
	if err != nil {
		panic(err)
	}

	return doc
}

// Len returns the number of keys in doc. It is safe to call on a nil
// Document.
func (doc *Document) Len() int {
	if doc == nil {
		return 0
	}

	return len(doc.keys)
}

// Keys returns doc's keys in insertion order. The returned slice must
// not be mutated.
func (doc *Document) Keys() []string {
	if doc == nil {
		return nil
	}

	return doc.keys
}

// Map returns doc's underlying key→value map. The returned map must not
// be mutated.
func (doc *Document) Map() map[string]any {
	if doc == nil {
		return nil
	}

	return doc.m
}

// Has reports whether doc contains key.
func (doc *Document) Has(key string) bool {
	if doc == nil {
		return false
	}

	_, ok := doc.m[key]

	return ok
}

// Get returns the value at key, or an error if it's not present.
func (doc *Document) Get(key string) (any, error) {
	if doc == nil {
		return nil, lazyerrors.Errorf("types.Document.Get: key not found: %q", key)
	}

	v, ok := doc.m[key]
	if !ok {
		return nil, lazyerrors.Errorf("types.Document.Get: key not found: %q", key)
	}

	return v, nil
}

// GetOrMissing returns the value at key, or Missing if it's not
// present. Unlike Get, this never errors.
func (doc *Document) GetOrMissing(key string) any {
	v, err := doc.Get(key)
	if err != nil {
		return Missing
	}

	return v
}

// Set sets key to value, appending key if it's new, or replacing the
// value in place (preserving position) if it already exists.
func (doc *Document) Set(key string, value any) error {
	value = Normalize(value)

	if !validateValue(value) {
		return lazyerrors.Errorf("types.Document.validate: types.validateValue: unsupported type: %T (%v)", value, value)
	}

	if doc.m == nil {
		doc.m = make(map[string]any)
	}

	if _, ok := doc.m[key]; !ok {
		doc.keys = append(doc.keys, key)
	}

	doc.m[key] = value

	return nil
}

// Remove deletes key from doc, if present. It does not preserve the
// position of other keys, but also does not reorder them.
func (doc *Document) Remove(key string) {
	if doc == nil || doc.m == nil {
		return
	}

	if _, ok := doc.m[key]; !ok {
		return
	}

	delete(doc.m, key)

	for i, k := range doc.keys {
		if k == key {
			doc.keys = append(doc.keys[:i], doc.keys[i+1:]...)

			break
		}
	}
}

// ShallowCopy returns a copy of doc whose keys and map are independent
// but whose values are shared with the original. It is the unit of work
// of the COPY_INPUT processing mode: cheap per-document isolation for
// stages that only add/remove top-level fields.
func (doc *Document) ShallowCopy() *Document {
	if doc == nil {
		return nil
	}

	cp := new(Document)

	if doc.keys != nil {
		cp.keys = make([]string, len(doc.keys))
		copy(cp.keys, doc.keys)
	}

	if doc.m != nil {
		cp.m = make(map[string]any, len(doc.m))

		for k, v := range doc.m {
			cp.m[k] = v
		}
	}

	return cp
}

// DeepCopy returns a recursive copy of doc.
func (doc *Document) DeepCopy() *Document {
	if doc == nil {
		return nil
	}

	cp := new(Document)

	if doc.keys != nil {
		cp.keys = make([]string, len(doc.keys))
		copy(cp.keys, doc.keys)
	}

	if doc.m != nil {
		cp.m = make(map[string]any, len(doc.m))

		for k, v := range doc.m {
			cp.m[k] = deepCopyValue(v)
		}
	}

	return cp
}

func deepCopyValue(v any) any {
	switch v := v.(type) {
	case *Document:
		return v.DeepCopy()
	case *Array:
		return v.DeepCopy()
	default:
		return v
	}
}

// validate checks that doc's keys and m are internally consistent: the
// same set of keys, each appearing exactly once in doc.keys.
func (doc *Document) validate() error {
	if doc.m == nil && doc.keys == nil {
		return nil
	}

	if len(doc.keys) != len(doc.m) {
		return lazyerrors.Errorf("types.Document.validate: keys and values count mismatch: %d != %d", len(doc.m), len(doc.keys))
	}

	seen := make(map[string]struct{}, len(doc.keys))

	for _, k := range doc.keys {
		if _, ok := seen[k]; ok {
			return lazyerrors.Errorf("types.Document.validate: duplicate key: %q", k)
		}

		seen[k] = struct{}{}

		if _, ok := doc.m[k]; !ok {
			return lazyerrors.Errorf("types.Document.validate: key not found: %q", k)
		}
	}

	return nil
}

// String implements fmt.Stringer, for debugging.
func (doc *Document) String() string {
	if doc == nil {
		return "Document(nil)"
	}

	return fmt.Sprintf("Document(%v)", doc.keys)
}
