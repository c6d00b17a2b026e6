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

package procedure

import (
	"reflect"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/scope"
	"github.com/bittoy/syncengine/syncerr"
)

// Match reports whether fragments matches constraints in full: every
// fragment must consume exactly one distinct constraint (spec §4.5 "the
// batch matches iff no unmatched fragments remain").
func Match(constraints []Constraint, s *scope.Scope, fragments []fragment.Fragment) (bool, error) {
	pool := append([]Constraint{}, constraints...)
	for _, f := range fragments {
		idx := -1
		for i, c := range pool {
			ok, err := matchOne(s, c, f)
			if err != nil {
				return false, err
			}
			if ok {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false, nil
		}
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return true, nil
}

func matchOne(s *scope.Scope, c Constraint, f fragment.Fragment) (bool, error) {
	if f.Type != c.FragmentType {
		return false, nil
	}
	className, err := s.ClassNameFor(f)
	if err != nil {
		return false, err
	}
	if c.ClassName != "" && className != c.ClassName {
		return false, nil
	}
	if len(c.Properties) > 0 && !c.AllowAdditionalProperties {
		if len(f.Properties) != len(c.Properties) {
			return false, nil
		}
		for k := range f.Properties {
			if _, ok := c.Properties[k]; !ok {
				return false, nil
			}
		}
	}
	for name, cond := range c.Properties {
		val, present := f.Properties[name]
		ok, err := matchCondition(s, f, name, cond, val, present)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchCondition(s *scope.Scope, f fragment.Fragment, name string, cond Condition, val any, present bool) (bool, error) {
	switch cond.Kind {
	case CondExact:
		return present && reflect.DeepEqual(val, cond.Exact), nil
	case CondHasNewValue:
		return present, nil
	case CondArrayInsert, CondArrayRemove:
		if !present {
			return false, nil
		}
		newSeq, ok := val.([]any)
		if !ok {
			return false, syncerr.New(syncerr.KindValidation, "procedure: constraint property %q expects a collection value", name)
		}
		priorLen := 0
		if obj, ok := s.GetByUUID(f.UUID); ok {
			priorLen = len(obj.Collection(name))
		}
		if cond.Kind == CondArrayInsert {
			return len(newSeq) == priorLen+1, nil
		}
		return len(newSeq) == priorLen-1, nil
	default:
		return false, syncerr.New(syncerr.KindValidation, "procedure: unknown condition kind")
	}
}
