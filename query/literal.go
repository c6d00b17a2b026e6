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
	"github.com/gofrs/uuid/v5"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/syncerr"
)

// normalizeRefValue turns a model-reference value into a UUID string,
// expanding an inline object literal into a freshly-UUIDed synthetic add
// fragment (appended to *synthetic) if it isn't already a UUID string.
func normalizeRefValue(reg *model.Registry, target *model.Type, value any, synthetic *[]fragment.Fragment) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]any:
		return expandLiteral(reg, target, v, synthetic)
	default:
		return "", syncerr.New(syncerr.KindValidation, "query: model-reference value must be a uuid string or an inline object literal")
	}
}

// normalizeRefSeq applies normalizeRefValue element-wise; non-reference
// collections pass through untouched.
func normalizeRefSeq(reg *model.Registry, desc *model.PropertyDescriptor, seq []any, synthetic *[]fragment.Fragment) ([]any, error) {
	if desc.Kind != model.KindModelRef {
		return seq, nil
	}
	out := make([]any, 0, len(seq))
	for _, elem := range seq {
		id, err := normalizeRefValue(reg, desc.Target(), elem, synthetic)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// expandLiteral allocates a UUID for literal and appends the synthetic add
// fragment it represents to *synthetic, recursively expanding any nested
// inline object literals in its own model-reference properties. literal
// may carry a "$cls" key naming a descendant of target, mirroring the
// fragment package's own $cls polymorphism on add fragments.
func expandLiteral(reg *model.Registry, target *model.Type, literal map[string]any, synthetic *[]fragment.Fragment) (string, error) {
	resolved := target
	props := make(map[string]any, len(literal))
	for k, v := range literal {
		if k == "$cls" {
			clsName, _ := v.(string)
			if clsName != "" && clsName != target.Name() {
				child, ok := reg.ChildType(target.Name(), clsName)
				if !ok {
					return "", syncerr.New(syncerr.KindValidation, "query: inline literal $cls %q does not resolve under %q", clsName, target.Name())
				}
				resolved = child
			}
			continue
		}
		props[k] = v
	}

	finalProps := make(map[string]any, len(props))
	for name, v := range props {
		desc, ok := resolved.Property(name)
		if !ok {
			return "", syncerr.New(syncerr.KindValidation, "query: unknown property %q on inline literal of %q", name, resolved.Name())
		}
		if desc.Kind != model.KindModelRef {
			finalProps[name] = v
			continue
		}
		if desc.Collection {
			seq, ok := v.([]any)
			if !ok {
				return "", syncerr.New(syncerr.KindValidation, "query: %q expects a list value", name)
			}
			refs, err := normalizeRefSeq(reg, desc, seq, synthetic)
			if err != nil {
				return "", err
			}
			finalProps[name] = refs
			continue
		}
		id, err := normalizeRefValue(reg, desc.Target(), v, synthetic)
		if err != nil {
			return "", err
		}
		finalProps[name] = id
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", syncerr.Wrap(syncerr.KindBackend, err, "query: uuid generation failed")
	}
	*synthetic = append(*synthetic, fragment.Fragment{
		Type:       fragment.Add,
		UUID:       id.String(),
		ClassName:  resolved.Name(),
		Properties: finalProps,
	})
	return id.String(), nil
}
