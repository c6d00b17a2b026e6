/*
 * Copyright 2026 The Syncengine Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package query

import (
	"github.com/bittoy/syncengine/keypath"
)

// ComputePush implements the $push final-value rule: append every
// modification element after the current sequence, in order.
func ComputePush(current, mods []any) []any {
	out := make([]any, 0, len(current)+len(mods))
	out = append(out, current...)
	out = append(out, mods...)
	return out
}

// ComputeAddToSet implements the $addToSet final-value rule: extend
// current by each mod element whose value is not already present.
func ComputeAddToSet(current, mods []any) []any {
	seen := make(map[any]bool, len(current))
	out := make([]any, 0, len(current)+len(mods))
	for _, e := range current {
		seen[e] = true
		out = append(out, e)
	}
	for _, m := range mods {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// ComputePull implements the $pull final-value rule: keep every element of
// current that matches none of the filters. isRef reports whether the
// collection property's elements are UUID references (so object-predicate filters resolve against the referenced
// live object) or plain scalars (compared directly).
func ComputePull(get keypath.Resolver, isRef bool, current, filters []any) ([]any, error) {
	out := make([]any, 0, len(current))
	for _, e := range current {
		matched := false
		for _, f := range filters {
			ok, err := matchesFilter(get, isRef, e, f)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, e)
		}
	}
	return out, nil
}
