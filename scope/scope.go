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

// Package scope implements the named container that owns a root model
// object and its reachable graph: applySyncFragments, the change
// broadcast, and the write lock that serializes every mutation.
package scope

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/logger"
	"github.com/bittoy/syncengine/model"
)

// ApplyOptions carries per-batch options threaded through apply and into
// the emitted changes event, so the originator can be filtered out
// downstream (spec §4.7 originator suppression) and so atomic batches
// abort on first failure (spec §4.3).
type ApplyOptions struct {
	Atomic bool
	// Context is an opaque originator marker (the session package stores a
	// *client handle here); scope never interprets it.
	Context any
}

// FragmentResult is the per-fragment outcome of an apply call.
type FragmentResult struct {
	OK    bool
	Error error
}

// ChangeSubscriber receives the fragments applied in one batch, plus the
// ApplyOptions they were applied with.
type ChangeSubscriber func(applied []fragment.Fragment, opts ApplyOptions)

// ProcedureRunner lets the procedure package hook applyProcedure without
// scope importing procedure (which imports scope and model): a concrete
// runner is supplied with WithProcedureRunner when the Scope is constructed.
type ProcedureRunner interface {
	RunProcedure(s *Scope, name string, fragments []fragment.Fragment, opts ApplyOptions) ([]FragmentResult, error)
}

// Scope is a named container owning a root object and its reachable graph.
type Scope struct {
	uuid   string
	name   string
	params map[string]any

	registry *model.Registry
	rootType *model.Type
	backend  Backend
	logger   logger.Logger

	mu   sync.Mutex // the write lock; guards root, subscribers and every mutation
	root *model.Object

	subscribers []ChangeSubscriber
	procRunner  ProcedureRunner
	metrics     ApplyMetrics

	DisableProcedureConstraints bool
}

// ApplyMetrics is the narrow slice of metrics.Metrics a Scope needs.
// metrics.Metrics satisfies it.
type ApplyMetrics interface {
	ObserveApply(scopeName string, seconds float64, fragmentTypes []string)
	ObserveScopeSyncFanout(peers int)
}

// Option configures a Scope at construction time.
type Option func(*Scope)

func WithBackend(b Backend) Option { return func(s *Scope) { s.backend = b } }
func WithLogger(l logger.Logger) Option {
	return func(s *Scope) {
		if l != nil {
			s.logger = l
		}
	}
}
func WithProcedureRunner(r ProcedureRunner) Option { return func(s *Scope) { s.procRunner = r } }
func WithMetrics(m ApplyMetrics) Option             { return func(s *Scope) { s.metrics = m } }

// New constructs a scope named `name` with the given params, backed by
// rootType's registry. If no backend is supplied, an InMemoryBackend is
// used.
func New(registry *model.Registry, rootType *model.Type, name string, params map[string]any, opts ...Option) *Scope {
	id, _ := uuid.NewV4()
	s := &Scope{
		uuid:     id.String(),
		name:     name,
		params:   params,
		registry: registry,
		rootType: rootType,
		backend:  NewInMemoryBackend(),
		logger:   logger.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scope) ScopeUUID() string          { return s.uuid }
func (s *Scope) Name() string               { return s.name }
func (s *Scope) Params() map[string]any     { return s.params }
func (s *Scope) Registry() *model.Registry  { return s.registry }
func (s *Scope) RootType() *model.Type      { return s.rootType }
func (s *Scope) Backend() Backend           { return s.backend }

// Subscribe registers a change subscriber, returning an unsubscribe func.
func (s *Scope) Subscribe(sub ChangeSubscriber) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
	idx := len(s.subscribers) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.subscribers) {
			s.subscribers[idx] = nil
		}
	}
}

// emit fans a batch's applied fragments out to every bound session
// concurrently: sessions are independent Send destinations, so one slow
// or blocked peer connection must not delay delivery to the others.
func (s *Scope) emit(applied []fragment.Fragment, opts ApplyOptions) {
	var g errgroup.Group
	count := 0
	for _, sub := range s.subscribers {
		if sub == nil {
			continue
		}
		sub := sub
		count++
		g.Go(func() error {
			sub(applied, opts)
			return nil
		})
	}
	_ = g.Wait()
	if s.metrics != nil {
		s.metrics.ObserveScopeSyncFanout(count)
	}
}

// GetRoot returns the current root object, or nil if unset.
func (s *Scope) GetRoot() *model.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// SetRoot sets the scope root. Setting it again replaces every attached
// object: the old subtree is detached first.
func (s *Scope) SetRoot(obj *model.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != nil {
		s.detachAllLocked()
	}
	s.root = obj
	if obj != nil {
		obj.SetScope(s)
		_ = s.backend.AddModelObject(obj)
	}
}

func (s *Scope) detachAllLocked() {
	for _, obj := range s.reachableLocked() {
		obj.SetScope(nil)
		_ = s.backend.RemoveModelObject(obj)
	}
}

// GetByUUID looks up an object via the persistence backend.
func (s *Scope) GetByUUID(id string) (*model.Object, bool) {
	return s.backend.GetModelObjectByUUID(id)
}

// Reachable returns every object currently reachable from the root, for
// callers (the session package's ScopeFetch reply) that need a full
// from-scratch fragment snapshot of the graph.
func (s *Scope) Reachable() []*model.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reachableLocked()
}

// Lock/Unlock expose the write lock directly. No package in this module
// calls them: the query package holds the lock across its resolve-then-apply
// sequence through ApplyUnderLock. ApplySyncFragments and ApplyUnderLock take
// the same lock, so neither may be called while holding Lock.
func (s *Scope) Lock()   { s.mu.Lock() }
func (s *Scope) Unlock() { s.mu.Unlock() }

// ApplyProcedure verifies fragments against the named procedure's
// constraints, applies them, and executes the procedure's remote spec.
// It requires a ProcedureRunner to have been wired via WithProcedureRunner.
func (s *Scope) ApplyProcedure(name string, fragments []fragment.Fragment, opts ApplyOptions) ([]FragmentResult, error) {
	if s.procRunner == nil {
		return nil, errScopeNoProcedureRunner
	}
	return s.procRunner.RunProcedure(s, name, fragments, opts)
}
