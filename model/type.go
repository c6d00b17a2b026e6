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

import "fmt"

// ValueKind is one of the declared property value kinds.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBoolean
	KindTimestamp
	KindModelRef
	KindEnum
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindTimestamp:
		return "timestamp"
	case KindModelRef:
		return "model-ref"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// PropertyDescriptor describes one declared property of a model type.
type PropertyDescriptor struct {
	Name       string
	Kind       ValueKind
	Collection bool

	// targetName/target are only set for KindModelRef properties. targetName
	// is recorded at Declare time (the type may not exist yet); target is
	// resolved by Registry.Freeze.
	targetName string
	target     *Type

	// enum is only set for KindEnum properties.
	enum *EnumType
}

// Target returns the resolved model type a model-reference property points
// at. Only valid after Registry.Freeze.
func (p *PropertyDescriptor) Target() *Type { return p.target }

// Enum returns the enumeration type of a KindEnum property.
func (p *PropertyDescriptor) Enum() *EnumType { return p.enum }

// Type is a named model class with an ordered property map, inheritance
// pointer, declared procedures, and child-type list.
type Type struct {
	name         string
	parent       *Type
	children     []*Type
	properties   map[string]*PropertyDescriptor
	propertyKeys []string // declaration order
	procedures   map[string]ProcedureRef
	registry     *Registry
}

// ProcedureRef is the minimal shape model.Type needs from a procedure so
// that the procedure package (which depends on model for constraint
// matching against model types) does not create an import cycle back into
// model. procedure.Procedure satisfies this interface.
type ProcedureRef interface {
	ProcedureName() string
}

func (t *Type) Name() string   { return t.name }
func (t *Type) Parent() *Type  { return t.parent }
func (t *Type) Children() []*Type {
	out := make([]*Type, len(t.children))
	copy(out, t.children)
	return out
}

// Property returns the descriptor for name, searching this type and its
// ancestors (child types inherit all parent properties).
func (t *Type) Property(name string) (*PropertyDescriptor, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if p, ok := cur.properties[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// Properties returns every declared property visible on this type
// (ancestors first, then this type's own additions), in declaration order.
func (t *Type) Properties() []*PropertyDescriptor {
	var chain []*Type
	for cur := t; cur != nil; cur = cur.parent {
		chain = append([]*Type{cur}, chain...)
	}
	var out []*PropertyDescriptor
	seen := make(map[string]bool)
	for _, cur := range chain {
		for _, key := range cur.propertyKeys {
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, cur.properties[key])
		}
	}
	return out
}

// IsOrDescendsFrom reports whether t is ancestorName or a descendant of it.
func (t *Type) IsOrDescendsFrom(ancestorName string) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.name == ancestorName {
			return true
		}
	}
	return false
}

// Procedure looks up a named procedure declared directly on this type
// (procedures are not inherited: a subtype must re-declare one if it wants
// the parent's constraint set under its own class name).
func (t *Type) Procedure(name string) (ProcedureRef, bool) {
	p, ok := t.procedures[name]
	return p, ok
}

// NewInstance allocates a detached runtime Object of this type. Collection
// properties start as empty sequences; scalar properties start unset.
func (t *Type) NewInstance(id string) *Object {
	return newObject(id, t)
}

// Builder accumulates property and procedure declarations for a Type being
// constructed by Registry.Declare. Errors are sticky: the first call that
// fails records b.err and all subsequent declarations on the same Builder
// become no-ops, surfaced when Declare returns.
type Builder struct {
	t   *Type
	err error
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

func (b *Builder) addProperty(p *PropertyDescriptor) {
	if b.err != nil {
		return
	}
	if p.Name == "" {
		b.fail("model: %s: property name must not be empty", b.t.name)
		return
	}
	if _, exists := b.t.properties[p.Name]; exists {
		b.fail("model: %s: duplicate property %q", b.t.name, p.Name)
		return
	}
	b.t.properties[p.Name] = p
	b.t.propertyKeys = append(b.t.propertyKeys, p.Name)
}

// Scalar declares a non-reference, non-collection property.
func (b *Builder) Scalar(name string, kind ValueKind) *Builder {
	if kind == KindModelRef || kind == KindEnum {
		b.fail("model: %s: Scalar cannot declare kind %s, use Ref/Enum", b.t.name, kind)
		return b
	}
	b.addProperty(&PropertyDescriptor{Name: name, Kind: kind})
	return b
}

// Collection declares a collection-valued scalar property.
func (b *Builder) Collection(name string, kind ValueKind) *Builder {
	if kind == KindModelRef || kind == KindEnum {
		b.fail("model: %s: Collection cannot declare kind %s, use RefCollection for references; enum collections are not supported", b.t.name, kind)
		return b
	}
	b.addProperty(&PropertyDescriptor{Name: name, Kind: kind, Collection: true})
	return b
}

// Ref declares a single model-reference property targeting targetTypeName,
// resolved later by Registry.Freeze so mutually recursive graphs work.
func (b *Builder) Ref(name, targetTypeName string) *Builder {
	b.addProperty(&PropertyDescriptor{Name: name, Kind: KindModelRef, targetName: targetTypeName})
	return b
}

// RefCollection declares a collection of model-references.
func (b *Builder) RefCollection(name, targetTypeName string) *Builder {
	b.addProperty(&PropertyDescriptor{Name: name, Kind: KindModelRef, Collection: true, targetName: targetTypeName})
	return b
}

// Enum declares an enumeration-valued property.
func (b *Builder) Enum(name string, enum *EnumType) *Builder {
	if enum == nil {
		b.fail("model: %s: Enum %q: nil enum type", b.t.name, name)
		return b
	}
	b.addProperty(&PropertyDescriptor{Name: name, Kind: KindEnum, enum: enum})
	return b
}

// Procedure registers a named procedure on the type under construction.
func (b *Builder) Procedure(p ProcedureRef) *Builder {
	if b.err != nil {
		return b
	}
	if p == nil || p.ProcedureName() == "" {
		b.fail("model: %s: procedure must have a name", b.t.name)
		return b
	}
	if b.t.procedures == nil {
		b.t.procedures = make(map[string]ProcedureRef)
	}
	b.t.procedures[p.ProcedureName()] = p
	return b
}
