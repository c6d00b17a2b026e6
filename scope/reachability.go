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

package scope

import "github.com/bittoy/syncengine/model"

// reachableLocked computes every object reachable from the root by walking
// model-reference and collection properties. Must be called with s.mu
// held.
func (s *Scope) reachableLocked() []*model.Object {
	if s.root == nil {
		return nil
	}
	visited := make(map[string]*model.Object)
	var walk func(obj *model.Object)
	walk = func(obj *model.Object) {
		if obj == nil {
			return
		}
		if _, seen := visited[obj.UUID()]; seen {
			return
		}
		visited[obj.UUID()] = obj
		for _, desc := range obj.Type().Properties() {
			if desc.Kind != model.KindModelRef {
				continue
			}
			if desc.Collection {
				for _, v := range obj.Collection(desc.Name) {
					if id, ok := v.(string); ok {
						if ref, ok := s.backend.GetModelObjectByUUID(id); ok {
							walk(ref)
						}
					}
				}
				continue
			}
			if v, ok := obj.Get(desc.Name); ok {
				if id, ok := v.(string); ok && id != "" {
					if ref, ok := s.backend.GetModelObjectByUUID(id); ok {
						walk(ref)
					}
				}
			}
		}
	}
	walk(s.root)

	out := make([]*model.Object, 0, len(visited))
	for _, o := range visited {
		out = append(out, o)
	}
	return out
}

// reconcileReachabilityLocked detaches any previously attached object that
// is no longer reachable from the root, per the apply pipeline's
// reachability pass (spec §4.3 step 4). candidates is the set of objects
// that existed in the backend before this batch's apply step, so newly
// unreachable adds (never attached in the first place) are not touched.
func (s *Scope) reconcileReachabilityLocked(candidates []*model.Object) {
	reachable := make(map[string]bool)
	for _, o := range s.reachableLocked() {
		reachable[o.UUID()] = true
	}
	for _, obj := range candidates {
		if !obj.Attached() {
			continue
		}
		if !reachable[obj.UUID()] {
			obj.SetScope(nil)
		}
	}
}
