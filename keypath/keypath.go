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

// Package keypath resolves the dot-and-bracket notation shared by the
// query operations and the expression engine: "foo.bar[0]" and
// "foo.bar.0" are equivalent, negative indices count from the end, and an
// index on an intermediate non-collection property is a Reference error.
// An index selects an element only on an intermediate segment: an index on
// the final segment is rejected with a Validation error.
package keypath

import (
	"strconv"
	"strings"

	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/syncerr"
)

// Resolver looks up a model object by UUID, the way a scope's backend does.
type Resolver func(uuid string) (*model.Object, bool)

// step is one parsed path component: a property name plus an optional
// collection index.
type step struct {
	name     string
	hasIndex bool
	index    int
}

// Parse splits a keypath string into steps, folding "foo.bar[0]" and
// "foo.bar.0" into the same representation.
func Parse(path string) ([]step, error) {
	var steps []step
	for _, raw := range strings.Split(path, ".") {
		if raw == "" {
			continue
		}
		name := raw
		hasIndex := false
		idx := 0
		if b := strings.IndexByte(raw, '['); b >= 0 {
			if !strings.HasSuffix(raw, "]") {
				return nil, syncerr.New(syncerr.KindValidation, "keypath: malformed index in %q", raw)
			}
			name = raw[:b]
			n, err := strconv.Atoi(raw[b+1 : len(raw)-1])
			if err != nil {
				return nil, syncerr.New(syncerr.KindValidation, "keypath: non-numeric index in %q", raw)
			}
			hasIndex = true
			idx = n
		} else if n, err := strconv.Atoi(raw); err == nil {
			// A bare numeric segment ("foo.bar.0") is a trailing index on
			// the previous step.
			if len(steps) == 0 {
				return nil, syncerr.New(syncerr.KindValidation, "keypath: leading numeric segment in %q", path)
			}
			steps[len(steps)-1].hasIndex = true
			steps[len(steps)-1].index = n
			continue
		}
		steps = append(steps, step{name: name, hasIndex: hasIndex, index: idx})
	}
	if len(steps) == 0 {
		return nil, syncerr.New(syncerr.KindValidation, "keypath: empty path")
	}
	return steps, nil
}

// resolveIndex normalizes a possibly-negative index against a sequence
// length, per spec §4.4: "a.b[-1]" is the last element, an out-of-range
// index (including "a.b[-len-1]") is a Reference error.
func resolveIndex(idx, length int) (int, error) {
	if idx < 0 {
		idx = length + idx
	}
	if idx < 0 || idx >= length {
		return 0, syncerr.New(syncerr.KindReference, "keypath: index out of range")
	}
	return idx, nil
}

// ResolveToOwner walks every step but the last from start, following
// model-reference properties (scalar or, with an index, collection) to
// find the object that owns the final named property. It returns that
// owner object and the final property name, so callers can either read or
// (in the query layer) rewrite that property.
func ResolveToOwner(get Resolver, start *model.Object, path string) (owner *model.Object, property string, err error) {
	steps, err := Parse(path)
	if err != nil {
		return nil, "", err
	}
	cur := start
	for i := 0; i < len(steps)-1; i++ {
		cur, err = step1(get, cur, steps[i])
		if err != nil {
			return nil, "", err
		}
	}
	last := steps[len(steps)-1]
	if last.hasIndex {
		return nil, "", syncerr.New(syncerr.KindValidation, "keypath: final segment %q must be a property name, not an index", last.name)
	}
	return cur, last.name, nil
}

// ResolveValue walks the full path from start and returns the resolved
// scalar (or collection) value.
func ResolveValue(get Resolver, start *model.Object, path string) (any, error) {
	owner, prop, err := ResolveToOwner(get, start, path)
	if err != nil {
		return nil, err
	}
	desc, ok := owner.Type().Property(prop)
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "keypath: unknown property %q on %q", prop, owner.Type().Name())
	}
	if desc.Collection {
		return owner.Collection(prop), nil
	}
	v, _ := owner.Get(prop)
	return v, nil
}

func step1(get Resolver, cur *model.Object, s step) (*model.Object, error) {
	if cur == nil {
		return nil, syncerr.New(syncerr.KindReference, "keypath: nil anchor while resolving %q", s.name)
	}
	desc, ok := cur.Type().Property(s.name)
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "keypath: unknown property %q on %q", s.name, cur.Type().Name())
	}
	if desc.Kind != model.KindModelRef {
		if s.hasIndex {
			return nil, syncerr.New(syncerr.KindReference, "keypath: index on non-collection property %q", s.name)
		}
		return nil, syncerr.New(syncerr.KindValidation, "keypath: %q is not a model reference, cannot continue walk", s.name)
	}
	if desc.Collection {
		seq := cur.Collection(s.name)
		if !s.hasIndex {
			return nil, syncerr.New(syncerr.KindValidation, "keypath: %q is a collection, an index is required to continue the walk", s.name)
		}
		idx, err := resolveIndex(s.index, len(seq))
		if err != nil {
			return nil, err
		}
		id, _ := seq[idx].(string)
		obj, ok := get(id)
		if !ok {
			return nil, syncerr.New(syncerr.KindReference, "keypath: unknown uuid %q at %q[%d]", id, s.name, idx)
		}
		return obj, nil
	}
	if s.hasIndex {
		return nil, syncerr.New(syncerr.KindReference, "keypath: index on non-collection property %q", s.name)
	}
	v, _ := cur.Get(s.name)
	id, _ := v.(string)
	if id == "" {
		return nil, syncerr.New(syncerr.KindReference, "keypath: %q is unset", s.name)
	}
	obj, ok := get(id)
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "keypath: unknown uuid %q at %q", id, s.name)
	}
	return obj, nil
}
