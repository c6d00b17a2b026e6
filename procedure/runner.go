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
	"context"
	"strings"

	"github.com/bittoy/syncengine/expr"
	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/logger"
	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/scope"
	"github.com/bittoy/syncengine/syncerr"
)

// Runner implements scope.ProcedureRunner: it resolves "Class.method" to
// a declared Procedure, matches constraints, applies the fragment batch,
// and executes the remote call template. It is the object a Scope is
// wired to via scope.WithProcedureRunner.
type Runner struct {
	reg    *model.Registry
	client Client
	logger logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger overrides the Runner's logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner builds a Runner resolving procedures against reg and executing
// remote calls through client.
func NewRunner(reg *model.Registry, client Client, opts ...Option) *Runner {
	r := &Runner{reg: reg, client: client, logger: logger.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunProcedure satisfies scope.ProcedureRunner.
func (r *Runner) RunProcedure(s *scope.Scope, name string, fragments []fragment.Fragment, opts scope.ApplyOptions) ([]scope.FragmentResult, error) {
	className, methodName, err := splitProcedureName(name)
	if err != nil {
		return nil, err
	}
	t, ok := r.reg.Type(className)
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "procedure: unknown class %q", className)
	}
	ref, ok := t.Procedure(methodName)
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "procedure: unknown procedure %q on %q", methodName, className)
	}
	proc, ok := ref.(*Procedure)
	if !ok {
		return nil, syncerr.New(syncerr.KindValidation, "procedure: %q is not a procedure.Procedure", name)
	}

	if !s.DisableProcedureConstraints {
		matched, err := Match(proc.Constraints, s, fragments)
		if err != nil {
			return nil, err
		}
		if !matched {
			return nil, syncerr.New(syncerr.KindValidation, "procedure: batch does not match %q's constraints", name)
		}
	}

	prior := capturePriorCollections(s, fragments)
	incoming := indexByClassType(s, fragments)

	results, err := s.ApplySyncFragments(fragments, opts)
	if err != nil {
		return results, err
	}

	req, err := proc.buildRequest(expr.Context{
		Scope:    s,
		Incoming: incoming,
		Options:  expr.Options{Cases: proc.Cases, PriorCollections: prior},
	})
	if err != nil {
		return results, syncerr.Wrap(syncerr.KindValidation, err, "procedure: template evaluation failed")
	}
	if r.client == nil {
		return results, nil
	}
	if _, err := r.client.Do(context.Background(), req); err != nil {
		return results, syncerr.Wrap(syncerr.KindRemote, err, "procedure: remote call failed")
	}
	return results, nil
}

func splitProcedureName(name string) (className, methodName string, err error) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return "", "", syncerr.New(syncerr.KindValidation, "procedure: name %q is not in Class.method form", name)
	}
	return name[:idx], name[idx+1:], nil
}

func capturePriorCollections(s *scope.Scope, fragments []fragment.Fragment) map[string][]any {
	out := make(map[string][]any)
	for _, f := range fragments {
		obj, ok := s.GetByUUID(f.UUID)
		if !ok {
			continue
		}
		for name := range f.Properties {
			desc, ok := obj.Type().Property(name)
			if !ok || !desc.Collection {
				continue
			}
			out[f.UUID+"."+name] = obj.Collection(name)
		}
	}
	return out
}

func indexByClassType(s *scope.Scope, fragments []fragment.Fragment) map[string][]fragment.Fragment {
	out := make(map[string][]fragment.Fragment)
	for _, f := range fragments {
		className, err := s.ClassNameFor(f)
		if err != nil {
			className = f.ClassName
		}
		key := className + "." + string(f.Type)
		out[key] = append(out[key], f)
	}
	return out
}
