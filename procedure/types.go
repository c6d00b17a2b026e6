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

// Package procedure implements the procedure execution contract from spec
// §4.5: a declared set of fragment-matching constraints guarding a remote
// call whose URL, headers, and body are built from the expr package's
// templating forms.
package procedure

import (
	"github.com/bittoy/syncengine/expr"
	"github.com/bittoy/syncengine/fragment"
)

// ScriptCase is the script-backed case-mapping extension (SPEC_FULL.md
// §4.5); it is an alias of expr.ScriptCase so a procedure's Cases map can
// mix plain lookup tables with goja-scripted ones under one type.
type ScriptCase = expr.ScriptCase

// CondKind is the shape a declared constraint property's condition takes.
type CondKind int

const (
	// CondExact requires the fragment's property value to equal Exact.
	CondExact CondKind = iota
	// CondHasNewValue requires only that the fragment carries the property
	// at all, regardless of value.
	CondHasNewValue
	// CondArrayInsert requires the fragment's new collection length to be
	// exactly one greater than the live object's prior collection length.
	CondArrayInsert
	// CondArrayRemove requires the fragment's new collection length to be
	// exactly one less than the live object's prior collection length.
	CondArrayRemove
)

// Condition is one declared property condition within a Constraint.
type Condition struct {
	Kind  CondKind
	Exact any
}

// Exact builds an exact-value condition.
func Exact(v any) Condition { return Condition{Kind: CondExact, Exact: v} }

// HasNewValue builds a presence-only condition.
func HasNewValue() Condition { return Condition{Kind: CondHasNewValue} }

// ArrayInsert builds a single-element-insertion condition.
func ArrayInsert() Condition { return Condition{Kind: CondArrayInsert} }

// ArrayRemove builds a single-element-removal condition.
func ArrayRemove() Condition { return Condition{Kind: CondArrayRemove} }

// Constraint is one fragment-matching rule in a procedure's constraint
// set, per spec §4.5's fragment-constraint match rule.
type Constraint struct {
	FragmentType              fragment.Type
	ClassName                 string
	Properties                map[string]Condition
	AllowAdditionalProperties bool
}

// ExecSpec is the remote call template: a URL with ":name" path
// placeholders resolved against Params, plus Headers and Body entries that
// are each either an expr form (a value beginning with "$") or a literal.
type ExecSpec struct {
	Method      string
	URLTemplate string
	Params      map[string]string
	Headers     map[string]string
	Body        map[string]string
}

// Procedure is a named, constrained, remotely-executing operation
// declared on a model type (spec §4.5). It satisfies model.ProcedureRef
// so it can be registered via model.Builder.Procedure.
type Procedure struct {
	Name        string
	Constraints []Constraint
	Exec        ExecSpec
	Cases       map[string]any
}

// ProcedureName satisfies model.ProcedureRef.
func (p *Procedure) ProcedureName() string { return p.Name }
