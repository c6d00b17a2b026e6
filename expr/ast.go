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
	"fmt"
	"strconv"
	"strings"

	"github.com/bittoy/syncengine/keypath"
	"github.com/bittoy/syncengine/syncerr"
)

// Node is a parsed expression ready to evaluate against a Context.
type Node interface {
	Eval(ctx Context) (any, error)
}

// Parse compiles raw into a Node. The result can be evaluated repeatedly
// against different contexts, mirroring the compile-once/eval-many shape
// used elsewhere for predicate evaluation.
func Parse(raw string) (Node, error) {
	segments := splitTopLevel(raw)
	if len(segments) == 0 || segments[0] == "" {
		return nil, errMalformed(raw)
	}
	switch segments[0] {
	case "$incoming":
		return parseIncoming(raw, segments[1:])
	case "$rootModel":
		return &rootModelNode{path: strings.Join(segments[1:], ".")}, nil
	case "$scope":
		return parseScope(raw, segments[1:])
	case "$model":
		return parseModelFind(raw, segments[1:])
	case "$case":
		return parseCase(raw, segments[1:])
	default:
		return nil, errMalformed(raw)
	}
}

// Eval is a convenience one-shot: parse raw and evaluate it immediately.
func Eval(ctx Context, raw string) (any, error) {
	n, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return n.Eval(ctx)
}

// --- $incoming.<Class>.<type>.<field>[index|inserted[i]|removed[i]] ---

type incomingIndex int

const (
	indexNone incomingIndex = iota
	indexLiteral
	indexInserted
	indexRemoved
)

type incomingNode struct {
	class, typ, field string
	indexKind         incomingIndex
	literalIdx        int
	nestedIdx         int
}

func parseIncoming(raw string, rest []string) (Node, error) {
	if len(rest) < 3 {
		return nil, errMalformed(raw)
	}
	class, typ := rest[0], rest[1]
	fieldSeg := strings.Join(rest[2:], ".")
	base, suffix, hasSuffix := splitIndexSuffix(fieldSeg)
	n := &incomingNode{class: class, typ: typ, field: base}
	if !hasSuffix {
		n.indexKind = indexNone
		return n, nil
	}
	switch {
	case strings.HasPrefix(suffix, "inserted[") && strings.HasSuffix(suffix, "]"):
		idx, err := strconv.Atoi(suffix[len("inserted[") : len(suffix)-1])
		if err != nil {
			return nil, errMalformed(raw)
		}
		n.indexKind = indexInserted
		n.nestedIdx = idx
	case strings.HasPrefix(suffix, "removed[") && strings.HasSuffix(suffix, "]"):
		idx, err := strconv.Atoi(suffix[len("removed[") : len(suffix)-1])
		if err != nil {
			return nil, errMalformed(raw)
		}
		n.indexKind = indexRemoved
		n.nestedIdx = idx
	default:
		idx, err := strconv.Atoi(suffix)
		if err != nil {
			return nil, errMalformed(raw)
		}
		n.indexKind = indexLiteral
		n.literalIdx = idx
	}
	return n, nil
}

func (n *incomingNode) Eval(ctx Context) (any, error) {
	key := n.class + "." + n.typ
	frags, ok := ctx.Incoming[key]
	if !ok || len(frags) == 0 {
		return nil, syncerr.New(syncerr.KindReference, "expr: no incoming fragment for %q", key)
	}
	f := frags[0]
	if n.field == "uuid" && n.indexKind == indexNone {
		return f.UUID, nil
	}
	value, ok := f.Properties[n.field]
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "expr: incoming fragment %q has no field %q", key, n.field)
	}
	switch n.indexKind {
	case indexNone:
		return value, nil
	case indexLiteral:
		seq, ok := value.([]any)
		if !ok {
			return nil, syncerr.New(syncerr.KindValidation, "expr: %q is not a collection", n.field)
		}
		idx := n.literalIdx
		if idx < 0 {
			idx = len(seq) + idx
		}
		if idx < 0 || idx >= len(seq) {
			return nil, syncerr.New(syncerr.KindReference, "expr: index out of range on %q", n.field)
		}
		return seq[idx], nil
	case indexInserted, indexRemoved:
		seq, ok := value.([]any)
		if !ok {
			return nil, syncerr.New(syncerr.KindValidation, "expr: %q is not a collection", n.field)
		}
		prior := ctx.Options.PriorCollections[f.UUID+"."+n.field]
		var diffed []any
		if n.indexKind == indexInserted {
			diffed = diffAdded(prior, seq)
		} else {
			diffed = diffAdded(seq, prior)
		}
		if n.nestedIdx < 0 || n.nestedIdx >= len(diffed) {
			return nil, syncerr.New(syncerr.KindReference, "expr: inserted/removed index out of range on %q", n.field)
		}
		return diffed[n.nestedIdx], nil
	default:
		return value, nil
	}
}

// diffAdded returns the elements of next absent from prev, preserving
// next's order. Used for both insertion (next=new, prev=old) and removal
// (next=old, prev=new) diffs.
func diffAdded(prev, next []any) []any {
	seen := make(map[any]bool, len(prev))
	for _, v := range prev {
		seen[v] = true
	}
	var out []any
	for _, v := range next {
		if !seen[v] {
			out = append(out, v)
		}
	}
	return out
}

// --- $rootModel.<keypath> ---

type rootModelNode struct {
	path string
}

func (n *rootModelNode) Eval(ctx Context) (any, error) {
	root := ctx.Scope.GetRoot()
	if root == nil {
		return nil, syncerr.New(syncerr.KindReference, "expr: scope has no root object")
	}
	if n.path == "" {
		return root.UUID(), nil
	}
	return keypath.ResolveValue(ctx.Scope.GetByUUID, root, n.path)
}

// --- $scope.name / $scope.params.<keypath> ---

type scopeNode struct {
	field string
	path  string
}

func parseScope(raw string, rest []string) (Node, error) {
	if len(rest) == 0 {
		return nil, errMalformed(raw)
	}
	switch rest[0] {
	case "name":
		return &scopeNode{field: "name"}, nil
	case "params":
		return &scopeNode{field: "params", path: strings.Join(rest[1:], ".")}, nil
	default:
		return nil, errMalformed(raw)
	}
}

func (n *scopeNode) Eval(ctx Context) (any, error) {
	switch n.field {
	case "name":
		return ctx.Scope.Name(), nil
	case "params":
		v, err := resolveFromMap(ctx.Scope.Params(), n.path)
		if err != nil {
			return nil, fmt.Errorf("expr: $scope.params: %w", err)
		}
		return v, nil
	default:
		return nil, errMalformed("$scope." + n.field)
	}
}

func resolveFromMap(m map[string]any, path string) (any, error) {
	if path == "" {
		return m, nil
	}
	var cur any = m
	for _, seg := range strings.Split(path, ".") {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, syncerr.New(syncerr.KindReference, "cannot descend into %q", seg)
		}
		cur, ok = asMap[seg]
		if !ok {
			return nil, syncerr.New(syncerr.KindReference, "unknown key %q", seg)
		}
	}
	return cur, nil
}

// --- $model.find(<innerExpr>).<keypath> ---

type modelFindNode struct {
	inner Node
	path  string
}

func parseModelFind(raw string, rest []string) (Node, error) {
	if len(rest) == 0 {
		return nil, errMalformed(raw)
	}
	name, inner, ok := splitCall(rest[0])
	if !ok || name != "find" {
		return nil, errMalformed(raw)
	}
	innerNode, err := Parse(inner)
	if err != nil {
		return nil, err
	}
	return &modelFindNode{inner: innerNode, path: strings.Join(rest[1:], ".")}, nil
}

func (n *modelFindNode) Eval(ctx Context) (any, error) {
	uuidVal, err := n.inner.Eval(ctx)
	if err != nil {
		return nil, err
	}
	uuid, ok := uuidVal.(string)
	if !ok {
		return nil, syncerr.New(syncerr.KindValidation, "expr: $model.find(...) inner expression did not yield a uuid")
	}
	obj, ok := ctx.Scope.GetByUUID(uuid)
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "expr: $model.find: unknown uuid %q", uuid)
	}
	if n.path == "" {
		return obj.UUID(), nil
	}
	return keypath.ResolveValue(ctx.Scope.GetByUUID, obj, n.path)
}

// --- $case.<tag>(<innerExpr>) ---

type caseNode struct {
	tag   string
	inner Node
}

func parseCase(raw string, rest []string) (Node, error) {
	if len(rest) == 0 {
		return nil, errMalformed(raw)
	}
	tag, inner, ok := splitCall(rest[0])
	if !ok {
		return nil, errMalformed(raw)
	}
	innerNode, err := Parse(inner)
	if err != nil {
		return nil, err
	}
	return &caseNode{tag: tag, inner: innerNode}, nil
}

func (n *caseNode) Eval(ctx Context) (any, error) {
	key, err := n.inner.Eval(ctx)
	if err != nil {
		return nil, err
	}
	mapping, ok := ctx.Options.Cases[n.tag]
	if !ok {
		return nil, syncerr.New(syncerr.KindReference, "expr: unknown case mapping %q", n.tag)
	}
	switch m := mapping.(type) {
	case map[string]any:
		keyStr := fmt.Sprintf("%v", key)
		v, ok := m[keyStr]
		if !ok {
			return nil, syncerr.New(syncerr.KindReference, "expr: case %q has no entry for %q", n.tag, keyStr)
		}
		return v, nil
	case ScriptCase:
		return runScriptCase(m, key)
	default:
		return nil, syncerr.New(syncerr.KindValidation, "expr: case %q has an unsupported mapping type", n.tag)
	}
}
