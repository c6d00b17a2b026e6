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

import (
	"errors"
	"time"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/syncerr"
)

var errScopeNoProcedureRunner = errors.New("scope: no ProcedureRunner configured, use WithProcedureRunner")

// ApplySyncFragments runs the apply pipeline from spec §4.3: resolve,
// verify, apply, reachability pass, emit. It executes under the scope's
// write lock, so batches from concurrent callers are totally ordered by
// lock-acquisition order (spec §5).
func (s *Scope) ApplySyncFragments(fragments []fragment.Fragment, opts ApplyOptions) ([]FragmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(fragments, opts)
}

// ApplyUnderLock runs build while already holding the scope's write lock
// and applies whatever fragment batch it returns, so a caller that needs to
// read live state and compute a fragment batch from it (the query layer's
// execute phase) gets the same serialization guarantee as a plain
// ApplySyncFragments call, instead of racing a concurrent batch between its
// read and its apply.
func (s *Scope) ApplyUnderLock(build func(s *Scope) ([]fragment.Fragment, ApplyOptions)) ([]FragmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frags, opts := build(s)
	return s.applyLocked(frags, opts)
}

func (s *Scope) applyLocked(frags []fragment.Fragment, opts ApplyOptions) ([]FragmentResult, error) {
	if s.metrics != nil {
		start := time.Now()
		types := make([]string, len(frags))
		for i, f := range frags {
			types[i] = string(f.Type)
		}
		defer func() { s.metrics.ObserveApply(s.name, time.Since(start).Seconds(), types) }()
	}
	results := make([]FragmentResult, len(frags))
	resolved := make([]*model.Type, len(frags))

	aborted := false
	for i, f := range frags {
		if aborted {
			results[i] = FragmentResult{Error: syncerr.New(syncerr.KindConcurrency, "scope: batch aborted by an earlier atomic failure")}
			continue
		}
		t, err := s.classFor(f)
		if err == nil {
			resolved[i], err = fragment.Validate(s.registry, t, f)
		}
		if err != nil {
			results[i] = FragmentResult{Error: err}
			if opts.Atomic {
				aborted = true
			}
			continue
		}
		results[i] = FragmentResult{OK: true}
	}

	if opts.Atomic && aborted {
		return results, nil
	}

	// Snapshot of objects that existed (and were attached) before this
	// batch, used to scope the post-apply reachability pass to objects
	// that could plausibly have been orphaned by it.
	before := s.reachableLocked()

	// Pass A: allocate every add first, so that changes later in the same
	// batch can reference them and so the reachability pass sees a
	// complete graph regardless of fragment order.
	for i, f := range frags {
		if !results[i].OK || f.Type != fragment.Add {
			continue
		}
		obj := resolved[i].NewInstance(f.UUID)
		for name, v := range f.Properties {
			applyPropertyValue(obj, name, v)
		}
		_ = s.backend.AddModelObject(obj)
	}

	// Pass B: changes, removes, movechanges, in original order.
	var applied []fragment.Fragment
	for i, f := range frags {
		if !results[i].OK {
			continue
		}
		switch f.Type {
		case fragment.Add:
			applied = append(applied, f)
		case fragment.Change, fragment.MoveChange:
			obj, ok := s.backend.GetModelObjectByUUID(f.UUID)
			if !ok {
				results[i] = FragmentResult{Error: syncerr.New(syncerr.KindReference, "scope: change of unknown uuid %q", f.UUID)}
				continue
			}
			changed := make([]string, 0, len(f.Properties))
			for name, v := range f.Properties {
				applyPropertyValue(obj, name, v)
				changed = append(changed, name)
			}
			_ = s.backend.UpdateModelObject(obj, changed)
			applied = append(applied, f)
		case fragment.Remove:
			obj, ok := s.backend.GetModelObjectByUUID(f.UUID)
			if !ok {
				results[i] = FragmentResult{Error: syncerr.New(syncerr.KindReference, "scope: remove of unknown uuid %q", f.UUID)}
				continue
			}
			obj.SetScope(nil)
			_ = s.backend.RemoveModelObject(obj)
			applied = append(applied, f)
		case fragment.RootChange:
			obj, ok := s.backend.GetModelObjectByUUID(f.UUID)
			if ok {
				s.root = obj
			}
			applied = append(applied, f)
		}
	}

	// Reachability pass: anything attached before this batch that is no
	// longer reachable from the root gets detached.
	s.reconcileReachabilityLocked(before)
	// Newly added objects also need scope attachment state set if they
	// ended up reachable (SetScope was skipped in pass A to keep the
	// reachability computation itself independent of attachment state).
	for _, obj := range s.reachableLocked() {
		obj.SetScope(s)
	}

	if len(applied) > 0 {
		s.emit(applied, opts)
	}
	return results, nil
}

// ClassNameFor resolves the model class name a fragment targets, exactly
// as the apply pipeline itself does, for collaborators (the procedure
// runner's constraint matcher) that need the same resolution without
// duplicating backend lookup logic.
func (s *Scope) ClassNameFor(f fragment.Fragment) (string, error) {
	t, err := s.classFor(f)
	if err != nil {
		return "", err
	}
	return t.Name(), nil
}

func (s *Scope) classFor(f fragment.Fragment) (*model.Type, error) {
	if f.Type == fragment.Add {
		if f.ClassName == "" {
			return nil, syncerr.New(syncerr.KindValidation, "scope: add fragment %q missing class name", f.UUID)
		}
		if t, ok := s.registry.Type(f.ClassName); ok {
			return t, nil
		}
		return nil, syncerr.New(syncerr.KindReference, "scope: unknown class %q", f.ClassName)
	}
	// change/remove/movechange/root: resolve the existing object's class.
	if obj, ok := s.backend.GetModelObjectByUUID(f.UUID); ok {
		return obj.Type(), nil
	}
	if f.ClassName != "" {
		if t, ok := s.registry.Type(f.ClassName); ok {
			return t, nil
		}
	}
	return nil, syncerr.New(syncerr.KindReference, "scope: %s of unknown uuid %q", f.Type, f.UUID)
}

func applyPropertyValue(obj *model.Object, name string, value any) {
	desc, ok := obj.Type().Property(name)
	if !ok {
		return
	}
	if desc.Collection {
		seq, ok := value.([]any)
		if !ok {
			return
		}
		obj.SetCollection(name, seq)
		return
	}
	obj.Set(name, value)
}
