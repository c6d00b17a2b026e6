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

package fragment

import "github.com/bittoy/syncengine/syncerr"

// LateBound is a fragment whose target UUID, class name, or property
// values are not yet known at prepare time and must be resolved by a
// keypath walk over the live graph before it can be applied. Used
// exclusively by the query layer (spec §4.2).
type LateBound struct {
	bound      bool
	fragment   Fragment
}

// NewLateBound starts a late-bound change fragment of the given type
// (Add/Change/Remove/MoveChange); UUID and class are filled in later via
// BindObjectUUID/BindClsName.
func NewLateBound(t Type) *LateBound {
	return &LateBound{fragment: Fragment{Type: t, Properties: map[string]any{}}}
}

// BindObjectUUID sets the fragment's target UUID, found by walking a
// keypath from a known anchor to the owning object.
func (l *LateBound) BindObjectUUID(uuid string) {
	l.fragment.UUID = uuid
	l.bound = true
}

// BindClsName sets the fragment's resolved class name.
func (l *LateBound) BindClsName(cls string) {
	l.fragment.ClassName = cls
}

// SetPropertiesOrThrow assigns the fragment's property map. It is an error
// to call this before the fragment's UUID has been bound.
func (l *LateBound) SetPropertiesOrThrow(props map[string]any) error {
	if !l.bound {
		return syncerr.New(syncerr.KindConcurrency, "fragment: late-bound fragment properties set before UUID bound")
	}
	l.fragment.Properties = props
	return nil
}

// Resolved returns the bound Fragment. Callers must only call this after
// BindObjectUUID (and SetPropertiesOrThrow, if it carries properties).
func (l *LateBound) Resolved() (Fragment, error) {
	if !l.bound {
		return Fragment{}, syncerr.New(syncerr.KindConcurrency, "fragment: late-bound fragment read before UUID bound")
	}
	return l.fragment, nil
}
