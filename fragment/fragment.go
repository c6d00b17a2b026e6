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

// Package fragment implements the sync-fragment patch format: the wire
// record for a single add/change/remove/movechange/root mutation, its
// validation against declared model-type property metadata, and its JSON
// wire form.
package fragment

import "github.com/bittoy/syncengine/model"

// Type is one of the five fragment kinds.
type Type string

const (
	Add         Type = "add"
	Change      Type = "change"
	Remove      Type = "remove"
	MoveChange  Type = "movechange"
	RootChange  Type = "root"
)

// Fragment is a single patch record. Property values are always
// serializable scalars or UUID-reference strings, never live object
// pointers (spec §3 invariant).
type Fragment struct {
	Type       Type           `json:"type"`
	UUID       string         `json:"uuid"`
	ClassName  string         `json:"clsName,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// FromAddData adapts a model.AddFragmentData into a wire Add fragment.
func FromAddData(d model.AddFragmentData) Fragment {
	return Fragment{Type: Add, UUID: d.UUID, ClassName: d.ClassName, Properties: d.Properties}
}

// Clone returns a deep-enough copy safe to mutate independently (the
// property map is copied; scalar/slice leaf values are shared, which is
// fine since the pipeline never mutates a fragment's leaf values in
// place, only reassigns map entries).
func (f Fragment) Clone() Fragment {
	props := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}
	return Fragment{Type: f.Type, UUID: f.UUID, ClassName: f.ClassName, Properties: props}
}
