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

// EnumType is a named, value-indexed enumeration produced by NewEnumType.
// It accepts either {name: integer} form or a flat sequence of strings
// (assigned 0, 1, 2, ...); values must be unique in both forms.
type EnumType struct {
	name      string
	byName    map[string]int64
	byValue   map[int64]string
}

// NewEnumType builds an enumeration from a {name: integer} map. A
// duplicate integer value is a fatal construction error.
func NewEnumType(name string, values map[string]int64) (*EnumType, error) {
	e := &EnumType{name: name, byName: make(map[string]int64, len(values)), byValue: make(map[int64]string, len(values))}
	for n, v := range values {
		if _, exists := e.byValue[v]; exists {
			return nil, fmt.Errorf("model: enum %q: duplicate value %d", name, v)
		}
		e.byName[n] = v
		e.byValue[v] = n
	}
	return e, nil
}

// NewEnumTypeFromSequence builds an enumeration from an ordered list of
// names, assigning 0, 1, 2, ... in order.
func NewEnumTypeFromSequence(name string, names []string) (*EnumType, error) {
	values := make(map[string]int64, len(names))
	for i, n := range names {
		if _, exists := values[n]; exists {
			return nil, fmt.Errorf("model: enum %q: duplicate name %q", name, n)
		}
		values[n] = int64(i)
	}
	return NewEnumType(name, values)
}

func (e *EnumType) Name() string { return e.name }

// Value returns the integer for a declared name.
func (e *EnumType) Value(name string) (int64, bool) {
	v, ok := e.byName[name]
	return v, ok
}

// NameOf returns the declared name for an integer value.
func (e *EnumType) NameOf(value int64) (string, bool) {
	n, ok := e.byValue[value]
	return n, ok
}
