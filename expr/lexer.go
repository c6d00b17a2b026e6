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

// Package expr implements the procedure templating DSL: a tiny, lexed
// language whose forms are $incoming, $rootModel, $scope, $model.find, and
// $case, evaluated against (scope, incoming fragments, options).
package expr

import (
	"strings"

	"github.com/bittoy/syncengine/syncerr"
)

// splitTopLevel splits s on '.' while treating any "(...)" span as opaque,
// so "$model.find(a.b).c" splits into ["$model", "find(a.b)", "c"], not
// ["$model", "find(a", "b)", "c"].
func splitTopLevel(s string) []string {
	var segments []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '.':
			if depth == 0 {
				segments = append(segments, s[start:i])
				start = i + 1
			}
		}
	}
	segments = append(segments, s[start:])
	return segments
}

// splitCall parses "name(inner)" into (name, inner, true); returns
// ok=false if segment has no trailing "(...)".
func splitCall(segment string) (name, inner string, ok bool) {
	open := strings.IndexByte(segment, '(')
	if open < 0 || !strings.HasSuffix(segment, ")") {
		return "", "", false
	}
	return segment[:open], segment[open+1 : len(segment)-1], true
}

// splitIndexSuffix extracts a trailing "[...]" suffix from a segment such
// as "uuid[0]" or "items[inserted[0]]", returning the base name and the
// raw (possibly nested-bracket) suffix content.
func splitIndexSuffix(segment string) (base, suffix string, hasSuffix bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, "", false
	}
	if !strings.HasSuffix(segment, "]") {
		return segment, "", false
	}
	return segment[:open], segment[open+1 : len(segment)-1], true
}

func errMalformed(raw string) error {
	return syncerr.New(syncerr.KindValidation, "expr: malformed expression %q", raw)
}
