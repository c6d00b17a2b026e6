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

package model

import "sync"

// ScopeRef is the minimal identity a model Object needs of its owning
// scope. The scope package implements it; model never calls back into
// scope, it only tracks which one (if any) currently owns this object, per
// the detached -> attached(scope) -> detached state machine in spec §4.1.
type ScopeRef interface {
	ScopeUUID() string
}

// Object is a runtime instance of a model Type. Identity is a UUID;
// mutable state is the property map. Objects are created detached and
// transition to attached only as a side effect of being wired into a
// scope's root or an already-attached object's graph.
type Object struct {
	mu         sync.RWMutex
	uuid       string
	typ        *Type
	properties map[string]any
	scope      ScopeRef
}

func newObject(id string, t *Type) *Object {
	o := &Object{uuid: id, typ: t, properties: make(map[string]any)}
	for _, p := range t.Properties() {
		if p.Collection {
			o.properties[p.Name] = []any{}
		}
	}
	return o
}

func (o *Object) UUID() string { return o.uuid }
func (o *Object) Type() *Type  { return o.typ }

// Attached reports whether the object currently belongs to a scope.
func (o *Object) Attached() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.scope != nil
}

// Scope returns the owning scope reference, or nil if detached.
func (o *Object) Scope() ScopeRef {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.scope
}

// SetScope transitions the object's attachment state. Called exclusively
// by the scope package's apply pipeline, never by application code.
func (o *Object) SetScope(s ScopeRef) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scope = s
}

// Get reads a single property's current value.
func (o *Object) Get(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.properties[name]
	return v, ok
}

// Properties returns a shallow copy of the full property map.
func (o *Object) Properties() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.properties))
	for k, v := range o.properties {
		out[k] = v
	}
	return out
}

// Set assigns a scalar (non-collection) property's value.
func (o *Object) Set(name string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.properties[name] = value
}

// Collection returns the ordered sequence currently held by a collection
// property, or nil if unset.
func (o *Object) Collection(name string) []any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.properties[name]
	if !ok {
		return nil
	}
	seq, _ := v.([]any)
	return seq
}

// SetCollection replaces the ordered sequence of a collection property.
func (o *Object) SetCollection(name string, seq []any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]any, len(seq))
	copy(cp, seq)
	o.properties[name] = cp
}

// AddFragmentData is the plain-data shape of "the fragment that would add
// this instance from nothing" (spec §4.1). The fragment package adapts
// this into a wire SyncFragment; model itself never imports fragment, to
// avoid a package cycle (fragment validates against model.Type).
type AddFragmentData struct {
	UUID       string
	ClassName  string
	Properties map[string]any
}

// AddFragment builds the AddFragmentData representing this object's
// current state as a from-scratch add.
func (o *Object) AddFragment() AddFragmentData {
	return AddFragmentData{
		UUID:       o.uuid,
		ClassName:  o.typ.Name(),
		Properties: o.Properties(),
	}
}
