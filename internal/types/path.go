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

import "strings"

// Path is a dot-separated sequence of segments identifying a position
// in a document/array tree. It is parsed once at
// construction and reused across every document the pipeline sees.
type Path struct {
	segments []string
}

// NewStaticPath builds a Path from already-split segments.
func NewStaticPath(segments ...string) Path {
	return Path{segments: segments}
}

// NewPathFromString splits a dotted path string into a Path.
func NewPathFromString(s string) Path {
	if s == "" {
		return Path{}
	}

	return Path{segments: strings.Split(s, ".")}
}

// Slice returns the Path's segments. The returned slice must not be
// mutated.
func (p Path) Slice() []string {
	return p.segments
}

// String reassembles the Path into its dotted form.
func (p Path) String() string {
	return strings.Join(p.segments, ".")
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// Prefix returns the first n segments of p as a new Path.
func (p Path) Prefix(n int) Path {
	return Path{segments: append([]string(nil), p.segments[:n]...)}
}

// Suffix returns the segments from index n onward as a new Path.
func (p Path) Suffix(n int) Path {
	return Path{segments: append([]string(nil), p.segments[n:]...)}
}

// TrimPrefix returns p with its first segment removed.
func (p Path) TrimPrefix() Path {
	if len(p.segments) == 0 {
		return p
	}

	return p.Suffix(1)
}

// First returns p's first segment, or "" if p is empty.
func (p Path) First() string {
	if len(p.segments) == 0 {
		return ""
	}

	return p.segments[0]
}
