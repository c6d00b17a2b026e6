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

package expr

import (
	"github.com/dop251/goja"

	"github.com/bittoy/syncengine/syncerr"
)

// runScriptCase evaluates a ScriptCase's source as a goja program with the
// case key bound to the global "key", returning whatever the script's last
// expression produces. This is the spec-extended alternative to a plain
// map[string]any case mapping, for cases too irregular to tabulate.
func runScriptCase(sc ScriptCase, key any) (any, error) {
	vm := goja.New()
	if err := vm.Set("key", key); err != nil {
		return nil, syncerr.Wrap(syncerr.KindValidation, err, "expr: case script setup failed")
	}
	v, err := vm.RunString(sc.Source)
	if err != nil {
		return nil, syncerr.Wrap(syncerr.KindValidation, err, "expr: case script failed")
	}
	return v.Export(), nil
}
