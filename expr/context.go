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
	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/scope"
)

// ScriptCase marks options.cases[tag] as a goja script rather than a plain
// lookup map (spec-extended §4.5 "script-backed $case mapping").
type ScriptCase struct {
	Source string
}

// Options carries the third element of the evaluation tuple
// (scope, incoming, options) from spec §4.5.
type Options struct {
	// Cases backs $case.<tag>(...): tag -> map[string]any, or a ScriptCase.
	Cases map[string]any

	// PriorCollections supplies the "prior" value of a collection field so
	// $incoming...[inserted[i]]/[removed[i]] can diff against it. Key is
	// "<uuid>.<field>". Populated by the procedure runner from the live
	// graph before applying the batch (the same prior-state read it needs
	// for the "array{insert|remove}" constraint condition).
	PriorCollections map[string][]any
}

// Context is the evaluation context expressions run against.
type Context struct {
	Scope *scope.Scope
	// Incoming indexes the fragment batch by "<Class>.<type>".
	Incoming map[string][]fragment.Fragment
	Options  Options
}
