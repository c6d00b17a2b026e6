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

package query

import (
	"reflect"

	"github.com/expr-lang/expr"

	"github.com/bittoy/syncengine/keypath"
	"github.com/bittoy/syncengine/syncerr"
)

// matchesFilter decides whether element matches one $pull filter: an
// exact-scalar filter is a direct equality test; an object-predicate
// filter ({property: value, ...}) is tested against the referenced live
// object's properties (with "$uuid" normalized to "uuid"); a reserved
// "$expr" key is a boolean expr-lang expression evaluated with the
// candidate's properties bound into the expression environment (spec's
// added $pull extended predicate, SPEC_FULL.md §4.4).
func matchesFilter(get keypath.Resolver, isRef bool, element, filter any) (bool, error) {
	pred, ok := filter.(map[string]any)
	if !ok {
		return reflect.DeepEqual(element, filter), nil
	}
	if !isRef {
		return false, syncerr.New(syncerr.KindValidation, "query: object predicate filter cannot target a non-reference collection")
	}
	uuidStr, _ := element.(string)
	obj, ok := get(uuidStr)
	if !ok {
		return false, syncerr.New(syncerr.KindReference, "query: $pull: unknown uuid %q", uuidStr)
	}
	env := obj.Properties()
	env["uuid"] = obj.UUID()

	for key, want := range pred {
		switch key {
		case "$uuid":
			if obj.UUID() != want {
				return false, nil
			}
		case "$expr":
			src, ok := want.(string)
			if !ok {
				return false, syncerr.New(syncerr.KindValidation, "query: $expr filter value must be a string expression")
			}
			program, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
			if err != nil {
				return false, syncerr.Wrap(syncerr.KindValidation, err, "query: $expr compile failed")
			}
			out, err := expr.Run(program, env)
			if err != nil {
				return false, syncerr.Wrap(syncerr.KindValidation, err, "query: $expr eval failed")
			}
			ok2, _ := out.(bool)
			if !ok2 {
				return false, nil
			}
		default:
			actual, ok := env[key]
			if !ok || !reflect.DeepEqual(actual, want) {
				return false, nil
			}
		}
	}
	return true, nil
}
