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
	"sync"

	"github.com/bittoy/syncengine/model"
)

// Backend is the persistence backend contract from spec §6. Implementations
// must be safe to call while the owning scope's write lock is held. The
// scope package makes every mutating call with that lock held;
// Scope.GetByUUID reads through the backend without taking it, so lookups
// must also be safe concurrently with a mutation.
type Backend interface {
	AddModelObject(obj *model.Object) error
	RemoveModelObject(obj *model.Object) error
	UpdateModelObject(obj *model.Object, changedProperties []string) error
	ContainsModelObjectWithUUID(uuid string) bool
	GetModelObjectByUUID(uuid string) (*model.Object, bool)
	GetModelObjectsByUUIDs(uuids []string) []*model.Object
}

// InMemoryBackend is the default Backend: a single mutex guarding a UUID
// map, matching the concurrency rule in spec §4.3 ("the in-memory backend
// uses a single mutex").
type InMemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]*model.Object
}

// NewInMemoryBackend constructs an empty in-memory backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{objects: make(map[string]*model.Object)}
}

func (b *InMemoryBackend) AddModelObject(obj *model.Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[obj.UUID()] = obj
	return nil
}

func (b *InMemoryBackend) RemoveModelObject(obj *model.Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, obj.UUID())
	return nil
}

func (b *InMemoryBackend) UpdateModelObject(obj *model.Object, _ []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[obj.UUID()] = obj
	return nil
}

func (b *InMemoryBackend) ContainsModelObjectWithUUID(uuid string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[uuid]
	return ok
}

func (b *InMemoryBackend) GetModelObjectByUUID(uuid string) (*model.Object, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.objects[uuid]
	return o, ok
}

func (b *InMemoryBackend) GetModelObjectsByUUIDs(uuids []string) []*model.Object {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*model.Object, 0, len(uuids))
	for _, id := range uuids {
		if o, ok := b.objects[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// All returns every object currently held, for reachability sweeps.
func (b *InMemoryBackend) All() []*model.Object {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*model.Object, 0, len(b.objects))
	for _, o := range b.objects {
		out = append(out, o)
	}
	return out
}
