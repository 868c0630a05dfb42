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

// Package collation implements the collation descriptor: a
// locale-aware total order on strings, used by $sort, $group key
// equality, and string comparisons that opt into collation. The actual
// Unicode collation work is delegated to golang.org/x/text/collate;
// this package only adapts its API to a single-method capability
// interface and layers numericOrdering on top.
package collation

import (
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CaseFirst controls whether upper- or lower-case sorts first when
// strength allows case to matter.
type CaseFirst string

// Recognized CaseFirst values.
const (
	CaseFirstOff   CaseFirst = "off"
	CaseFirstUpper CaseFirst = "upper"
	CaseFirstLower CaseFirst = "lower"
)

// Alternate carries MongoDB's alternate setting ("non-ignorable" or
// "shifted"). New maps "shifted" to ignoring diacritics and character
// width; neither value makes punctuation or whitespace ignorable.
type Alternate string

// Recognized Alternate values.
const (
	AlternateNonIgnorable Alternate = "non-ignorable"
	AlternateShifted      Alternate = "shifted"
)

// Descriptor is a collation specification, matching the fields of
// MongoDB's collation document.
type Descriptor struct {
	Locale          string
	Strength        int // 1 (primary) through 5 (identical)
	CaseFirst       CaseFirst
	NumericOrdering bool
	Alternate       Alternate
	CaseLevel       bool
	Backwards       bool
}

// Collator is the narrow capability the rest of the engine depends on:
// a single-method total order on strings. $sort, $group, and any
// expression operator that's collation-aware all go through this
// interface instead of calling into golang.org/x/text directly.
type Collator interface {
	// Compare returns -1, 0, or 1 as a sorts before, equal to, or after
	// b under this collation.
	Compare(a, b string) int
}

// Default is the case-sensitive byte-order collator used when no
// Descriptor is given.
var Default Collator = byteOrder{}

type byteOrder struct{}

func (byteOrder) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// New builds a Collator from d. A nil Descriptor returns Default.
func New(d *Descriptor) (Collator, error) {
	if d == nil {
		return Default, nil
	}

	tag, err := language.Parse(d.Locale)
	if err != nil {
		tag = language.Und
	}

	opts := []collate.Option{strengthOption(d.Strength)}

	if d.CaseLevel {
		opts = append(opts, collate.Force)
	}

	switch d.CaseFirst {
	case CaseFirstUpper:
		opts = append(opts, collate.Upper)
	case CaseFirstLower:
		opts = append(opts, collate.Lower)
	}

	if d.Alternate == AlternateShifted {
		opts = append(opts, collate.IgnoreDiacritics, collate.IgnoreWidth)
	}

	col := collate.New(tag, opts...)

	c := &textCollator{col: col, backwards: d.Backwards}

	if d.NumericOrdering {
		return numericCollator{inner: c}, nil
	}

	return c, nil
}

func strengthOption(strength int) collate.Option {
	switch strength {
	case 1:
		return collate.Primary
	case 2:
		return collate.Secondary
	case 3, 0:
		return collate.Tertiary
	case 4:
		return collate.Quaternary
	default:
		return collate.Identity
	}
}

// textCollator adapts golang.org/x/text/collate.Collator.
type textCollator struct {
	col       *collate.Collator
	backwards bool
}

// Compare implements Collator.
func (c *textCollator) Compare(a, b string) int {
	res := c.col.CompareString(a, b)

	if c.backwards {
		return -res
	}

	return res
}

// numericCollator splits each string into alternating digit and
// non-digit runs and compares runs pairwise: digit runs as numbers,
// everything else through the wrapped collator. "item10" sorts after
// "item2".
type numericCollator struct {
	inner Collator
}

// Compare implements Collator.
func (c numericCollator) Compare(a, b string) int {
	ia, ib := 0, 0

	for ia < len(a) && ib < len(b) {
		ra, digitA := nextRun(a, ia)
		rb, digitB := nextRun(b, ib)

		if digitA && digitB {
			va, errA := strconv.ParseUint(strings.TrimLeft(ra, "0"), 10, 64)
			vb, errB := strconv.ParseUint(strings.TrimLeft(rb, "0"), 10, 64)

			// TrimLeft of an all-zero run yields "", which ParseUint
			// rejects; that run's value is zero.
			if errA != nil {
				va = 0
			}

			if errB != nil {
				vb = 0
			}

			if va != vb {
				if va < vb {
					return -1
				}

				return 1
			}
		} else if res := c.inner.Compare(ra, rb); res != 0 {
			return res
		}

		ia += len(ra)
		ib += len(rb)
	}

	switch {
	case ia < len(a):
		return 1
	case ib < len(b):
		return -1
	default:
		return c.inner.Compare(a, b)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// nextRun returns the maximal same-kind (digit or non-digit) run of s
// starting at i.
func nextRun(s string, i int) (run string, digits bool) {
	digits = isDigit(s[i])

	j := i + 1
	for j < len(s) && isDigit(s[j]) == digits {
		j++
	}

	return s[i:j], digits
}
