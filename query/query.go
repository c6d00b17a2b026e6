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

// Package query translates a MongoDB-style update document ($set/$push/
// $pull/$addToSet) targeted at a model object into a fragment batch the
// scope can apply, per spec §4.4's two-phase prepareAndValidate/execute
// shape.
package query

import (
	"fmt"
	"reflect"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/keypath"
	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/scope"
	"github.com/bittoy/syncengine/syncerr"
)

const (
	OpSet      = "$set"
	OpPush     = "$push"
	OpPull     = "$pull"
	OpAddToSet = "$addToSet"
)

// Document is the raw update document: operator -> keypath -> value.
type Document map[string]map[string]any

type planEntry struct {
	op      string
	keypath string
	desc    *model.PropertyDescriptor
	value   any
}

// Plan is the result of PrepareAndValidate: every modification keypath
// resolved and type-checked, every inline literal expanded into a
// synthetic add fragment with its own freshly allocated UUID.
type Plan struct {
	synthetic []fragment.Fragment
	entries   []planEntry
}

// PrepareAndValidate resolves every keypath in doc against rootType,
// translates inline object literals into synthetic add fragments, and
// validates values against the declared property kinds. No live object or
// scope is touched at this phase.
func PrepareAndValidate(reg *model.Registry, rootType *model.Type, doc Document) (*Plan, error) {
	plan := &Plan{}
	for op, fields := range doc {
		switch op {
		case OpSet, OpPush, OpPull, OpAddToSet:
		default:
			return nil, syncerr.New(syncerr.KindValidation, "query: unknown operator %q", op)
		}
		for kp, val := range fields {
			rk, err := resolveTypeKeypath(reg, rootType, kp)
			if err != nil {
				return nil, err
			}
			normalized, err := normalizeOperatorValue(reg, rk.desc, op, val, &plan.synthetic)
			if err != nil {
				return nil, err
			}
			plan.entries = append(plan.entries, planEntry{op: op, keypath: kp, desc: rk.desc, value: normalized})
		}
	}
	return plan, nil
}

func normalizeOperatorValue(reg *model.Registry, desc *model.PropertyDescriptor, op string, val any, synthetic *[]fragment.Fragment) (any, error) {
	switch op {
	case OpSet:
		if desc.Collection {
			seq, ok := val.([]any)
			if !ok {
				return nil, syncerr.New(syncerr.KindValidation, "query: $set on collection %q requires a list value", desc.Name)
			}
			return normalizeRefSeq(reg, desc, seq, synthetic)
		}
		if desc.Kind == model.KindModelRef {
			return normalizeRefValue(reg, desc.Target(), val, synthetic)
		}
		return val, nil
	case OpPush, OpAddToSet:
		if !desc.Collection {
			return nil, syncerr.New(syncerr.KindValidation, "query: %s requires a collection property, %q is scalar", op, desc.Name)
		}
		seq, ok := val.([]any)
		if !ok {
			seq = []any{val}
		}
		return normalizeRefSeq(reg, desc, seq, synthetic)
	case OpPull:
		if !desc.Collection {
			return nil, syncerr.New(syncerr.KindValidation, "query: $pull requires a collection property, %q is scalar", desc.Name)
		}
		seq, ok := val.([]any)
		if !ok {
			seq = []any{val}
		}
		return seq, nil
	default:
		return val, nil
	}
}

// QueryResult aggregates the outcome of executing a Plan, per spec §4.4.
type QueryResult struct {
	Matched  []string
	Created  []string
	Modified []string
	Errors   []string
}

// Execute runs the plan against target's scope: for each late-bound entry
// it walks the keypath from target to the owning live object, computes the
// operator's final value, and (if changed) stages a change fragment. The
// whole read-compute-apply sequence runs under the scope's write lock via
// ApplyUnderLock, so it is atomic with respect to concurrent
// ApplySyncFragments/Execute calls on the same scope.
func (p *Plan) Execute(sc *scope.Scope, target *model.Object) (*QueryResult, error) {
	qr := &QueryResult{}
	for _, f := range p.synthetic {
		qr.Created = append(qr.Created, f.UUID)
	}

	type ownerState struct {
		obj   *model.Object
		props map[string]any
	}

	results, err := sc.ApplyUnderLock(func(s *scope.Scope) ([]fragment.Fragment, scope.ApplyOptions) {
		batch := append([]fragment.Fragment{}, p.synthetic...)
		owners := map[string]*ownerState{}
		var order []string

		for _, e := range p.entries {
			owner, prop, err := keypath.ResolveToOwner(s.GetByUUID, target, e.keypath)
			if err != nil {
				qr.Errors = append(qr.Errors, fmt.Sprintf("%s: %v", e.keypath, err))
				continue
			}
			os, ok := owners[owner.UUID()]
			if !ok {
				os = &ownerState{obj: owner, props: map[string]any{}}
				owners[owner.UUID()] = os
				order = append(order, owner.UUID())
			}

			var current any
			if v, ok := os.props[prop]; ok {
				current = v
			} else if e.desc.Collection {
				current = owner.Collection(prop)
			} else {
				current, _ = owner.Get(prop)
			}

			final, changed, err := applyOperator(s.GetByUUID, e, current)
			if err != nil {
				qr.Errors = append(qr.Errors, fmt.Sprintf("%s: %v", e.keypath, err))
				continue
			}
			if !changed {
				continue
			}
			os.props[prop] = final
			qr.Matched = append(qr.Matched, owner.UUID())
		}

		for _, uuid := range order {
			os := owners[uuid]
			if len(os.props) == 0 {
				continue
			}
			batch = append(batch, fragment.Fragment{Type: fragment.Change, UUID: uuid, Properties: os.props})
			qr.Modified = append(qr.Modified, uuid)
		}
		return batch, scope.ApplyOptions{}
	})
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if !r.OK && r.Error != nil {
			qr.Errors = append(qr.Errors, r.Error.Error())
		}
	}
	return qr, nil
}

func applyOperator(get keypath.Resolver, e planEntry, current any) (final any, changed bool, err error) {
	switch e.op {
	case OpSet:
		if e.desc.Collection {
			newSeq, _ := e.value.([]any)
			curSeq, _ := current.([]any)
			if sequenceEqual(curSeq, newSeq) {
				return nil, false, nil
			}
			return newSeq, true, nil
		}
		if reflect.DeepEqual(current, e.value) {
			return nil, false, nil
		}
		return e.value, true, nil
	case OpPush:
		curSeq, _ := current.([]any)
		modSeq, _ := e.value.([]any)
		if len(modSeq) == 0 {
			return nil, false, nil
		}
		return ComputePush(curSeq, modSeq), true, nil
	case OpAddToSet:
		curSeq, _ := current.([]any)
		modSeq, _ := e.value.([]any)
		result := ComputeAddToSet(curSeq, modSeq)
		if sequenceEqual(curSeq, result) {
			return nil, false, nil
		}
		return result, true, nil
	case OpPull:
		curSeq, _ := current.([]any)
		filters, _ := e.value.([]any)
		result, err := ComputePull(get, e.desc.Kind == model.KindModelRef, curSeq, filters)
		if err != nil {
			return nil, false, err
		}
		if sequenceEqual(curSeq, result) {
			return nil, false, nil
		}
		return result, true, nil
	default:
		return nil, false, syncerr.New(syncerr.KindValidation, "query: unknown operator %q", e.op)
	}
}

func sequenceEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
