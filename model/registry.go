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

// Package model implements the model kernel: named model types with
// reflective property metadata, an inheritance lattice resolved by type
// name (so mutually recursive model-reference graphs are expressible),
// and runtime model objects with scope-attachment state.
package model

import (
	"fmt"
	"sync"
)

// Registry is the type-handle table mapping a model type name to its
// descriptor. It supersedes the source's prototype-chain dispatch with an
// explicit table, per the "tagged variants" design note.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]*Type
	frozen bool
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Declare registers a new model type under name, optionally extending
// parentName (empty for a root type). decl is invoked synchronously with a
// *Builder to register properties and procedures; it runs while Declare
// holds the registry's write lock, before the type is published, so decl
// must not call back into the registry, and the type is complete when other
// goroutines first see it, matching the "property declarations are
// immutable after type creation" invariant.
func (r *Registry) Declare(name, parentName string, decl func(b *Builder)) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil, fmt.Errorf("model: registry frozen, cannot declare %q", name)
	}
	if name == "" {
		return nil, fmt.Errorf("model: type name must not be empty")
	}
	if _, exists := r.types[name]; exists {
		return nil, fmt.Errorf("model: type %q already declared", name)
	}

	var parent *Type
	if parentName != "" {
		var ok bool
		parent, ok = r.types[parentName]
		if !ok {
			return nil, fmt.Errorf("model: unknown parent type %q for %q", parentName, name)
		}
	}

	t := &Type{
		name:       name,
		parent:     parent,
		properties: make(map[string]*PropertyDescriptor),
		procedures: make(map[string]ProcedureRef),
		registry:   r,
	}
	b := &Builder{t: t}
	if decl != nil {
		decl(b)
	}
	if err := b.err; err != nil {
		return nil, err
	}

	if parent != nil {
		parent.children = append(parent.children, t)
	}
	r.types[name] = t
	return t, nil
}

// Freeze resolves every model-reference property's target-type-name string
// to a live *Type handle. Call once after all Declare calls complete; any
// forward reference that is still unresolved at Freeze time is a fatal
// construction error.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.types {
		for _, p := range t.properties {
			if p.Kind != KindModelRef || p.targetName == "" {
				continue
			}
			target, ok := r.types[p.targetName]
			if !ok {
				return fmt.Errorf("model: property %s.%s references unknown type %q", t.name, p.Name, p.targetName)
			}
			p.target = target
		}
	}
	r.frozen = true
	return nil
}

// Type looks up a declared model type by name.
func (r *Registry) Type(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// MustType is Type but panics on miss; useful in tests and example wiring.
func (r *Registry) MustType(name string) *Type {
	t, ok := r.Type(name)
	if !ok {
		panic(fmt.Sprintf("model: unknown type %q", name))
	}
	return t
}

// Descendants returns name plus every type registered as a (transitive)
// child of it, used to resolve $cls polymorphism on add fragments.
func (r *Registry) Descendants(name string) ([]*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	root, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("model: unknown type %q", name)
	}
	var out []*Type
	var walk func(*Type)
	walk = func(t *Type) {
		out = append(out, t)
		for _, c := range t.children {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

// ChildType returns the child of parentName registered under childName, if
// childName names parentName itself or any descendant of it.
func (r *Registry) ChildType(parentName, childName string) (*Type, bool) {
	descendants, err := r.Descendants(parentName)
	if err != nil {
		return nil, false
	}
	for _, d := range descendants {
		if d.name == childName {
			return d, true
		}
	}
	return nil, false
}
