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
	"strconv"
	"strings"

	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/syncerr"
)

// resolvedKeypath is the type-level result of walking a modification
// keypath against the model-type tree, before any live object exists.
type resolvedKeypath struct {
	ownerType *model.Type
	property  string
	desc      *model.PropertyDescriptor
}

// resolveTypeKeypath walks path against the type tree rooted at root,
// following model-reference properties (collection steps require a
// bracket or dot index, exactly as the live keypath walk does) and
// resolving property names that only exist on a descendant of the current
// type (spec §4.4 "descendant polymorphism"). A property name found on
// more than one distinct descendant declaration is a fatal ambiguity.
func resolveTypeKeypath(reg *model.Registry, root *model.Type, path string) (resolvedKeypath, error) {
	var segs []string
	for _, s := range strings.Split(path, ".") {
		// A bare numeric segment is the dot form of an index on the
		// previous segment: "foo.bar.0" walks exactly like "foo.bar[0]".
		if _, err := strconv.Atoi(s); err == nil && len(segs) > 0 {
			segs[len(segs)-1] += "[" + s + "]"
			continue
		}
		segs = append(segs, s)
	}
	if len(segs) == 1 && segs[0] == "" {
		return resolvedKeypath{}, syncerr.New(syncerr.KindValidation, "query: empty keypath")
	}
	cur := root
	for i, raw := range segs {
		name, hasIdx := splitIndex(raw)
		if name == "" {
			return resolvedKeypath{}, syncerr.New(syncerr.KindValidation, "query: malformed keypath segment %q in %q", raw, path)
		}
		last := i == len(segs)-1
		desc, owner, err := findProperty(reg, cur, name)
		if err != nil {
			return resolvedKeypath{}, err
		}
		if last {
			if hasIdx {
				return resolvedKeypath{}, syncerr.New(syncerr.KindValidation, "query: final keypath segment %q must be a property name, not an index", raw)
			}
			return resolvedKeypath{ownerType: owner, property: name, desc: desc}, nil
		}
		if desc.Kind != model.KindModelRef {
			return resolvedKeypath{}, syncerr.New(syncerr.KindValidation, "query: %q is not a model reference, cannot continue the keypath", name)
		}
		if desc.Collection && !hasIdx {
			return resolvedKeypath{}, syncerr.New(syncerr.KindValidation, "query: %q is a collection, an index is required to continue the keypath", name)
		}
		if !desc.Collection && hasIdx {
			return resolvedKeypath{}, syncerr.New(syncerr.KindValidation, "query: index on non-collection property %q", name)
		}
		cur = desc.Target()
	}
	return resolvedKeypath{}, syncerr.New(syncerr.KindValidation, "query: empty keypath")
}

// splitIndex strips a trailing "[n]" from a keypath segment. The dot-index
// form ("foo.bar.0") reaches it already folded into the bracket form by
// resolveTypeKeypath.
func splitIndex(raw string) (name string, hasIndex bool) {
	open := strings.IndexByte(raw, '[')
	if open < 0 {
		return raw, false
	}
	if !strings.HasSuffix(raw, "]") {
		return "", false
	}
	return raw[:open], true
}

// findProperty looks up name on t, falling back to a search across t's
// descendants when t itself does not declare it. Ambiguity is detected by
// distinct descendant declarations (different *PropertyDescriptor
// pointers) surfacing the same name; two descendants inheriting the same
// declared property from a shared ancestor share one pointer and are not
// ambiguous.
func findProperty(reg *model.Registry, t *model.Type, name string) (*model.PropertyDescriptor, *model.Type, error) {
	if desc, ok := t.Property(name); ok {
		return desc, t, nil
	}
	descendants, err := reg.Descendants(t.Name())
	if err != nil {
		return nil, nil, err
	}
	var found *model.PropertyDescriptor
	var owner *model.Type
	ambiguous := false
	for _, d := range descendants {
		if d == t {
			continue
		}
		desc, ok := d.Property(name)
		if !ok {
			continue
		}
		if found == nil {
			found, owner = desc, d
		} else if found != desc {
			ambiguous = true
		}
	}
	if ambiguous {
		return nil, nil, syncerr.New(syncerr.KindValidation, "query: property %q is ambiguous across descendants of %q", name, t.Name())
	}
	if found == nil {
		return nil, nil, syncerr.New(syncerr.KindReference, "query: unknown property %q on %q or its descendants", name, t.Name())
	}
	return found, owner, nil
}
