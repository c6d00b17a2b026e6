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

// Package session implements the session lifecycle from spec §4.7:
// SessionCreate handshake and token minting, ScopeFetch binding, ScopeSync
// dispatch into the bound scope, originator-suppressed change fan-out, and
// single-shot inactivity expiry.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/logger"
	"github.com/bittoy/syncengine/message"
	"github.com/bittoy/syncengine/scope"
	"github.com/bittoy/syncengine/syncerr"
)

// DefaultInactivityTimeout is the spec's default single-shot inactivity
// deadline (spec §4.7).
const DefaultInactivityTimeout = 10 * time.Minute

// Client is the minimal handle a Session needs of its connection: a way to
// push a message out. The transport reliability layer implements this.
type Client interface {
	Send(m message.Message) error
}

// FetchFunc resolves a ScopeFetch into a bound scope, or returns an error
// to deny it (surfaced as ScopeFetchReply.Error, spec §4.7).
type FetchFunc func(name string, params map[string]any) (*scope.Scope, error)

// AcceptFunc decides whether to accept a SessionCreate handshake. A
// non-nil return denies the session; its message becomes the
// SessionCreateReply error (spec §4.7).
type AcceptFunc func(version string, params map[string]any) error

type boundScope struct {
	scope       *scope.Scope
	unsubscribe func()
}

// Session is a single client's server-side session state.
type Session struct {
	mu sync.Mutex

	uuid   string
	client Client
	token  string

	nextIndex uint64
	scopes    []*boundScope
	accepted  bool
	expired   bool

	inactivityTimeout time.Duration
	timer             *time.Timer

	onAccept AcceptFunc
	onFetch  FetchFunc
	onExpire func(s *Session)

	metrics SessionMetrics
	logger  logger.Logger
}

// SessionMetrics is the narrow slice of metrics.Metrics a Session needs.
// metrics.Metrics satisfies it.
type SessionMetrics interface {
	SessionAccepted()
	SessionExpired()
}

// Option configures a Session at construction time.
type Option func(*Session)

func WithAcceptHandler(f AcceptFunc) Option { return func(s *Session) { s.onAccept = f } }
func WithFetchHandler(f FetchFunc) Option   { return func(s *Session) { s.onFetch = f } }
func WithExpireHandler(f func(*Session)) Option {
	return func(s *Session) { s.onExpire = f }
}
func WithInactivityTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.inactivityTimeout = d
		}
	}
}
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
func WithMetrics(m SessionMetrics) Option { return func(s *Session) { s.metrics = m } }

// New constructs a Session bound to client and arms its inactivity timer.
// The session is not yet "accepted": it only becomes usable once its first
// message is a well-formed SessionCreate.
func New(client Client, opts ...Option) *Session {
	id, _ := uuid.NewV4()
	s := &Session{
		uuid:              id.String(),
		client:            client,
		inactivityTimeout: DefaultInactivityTimeout,
		logger:            logger.Nop{},
	}
	for _, o := range opts {
		o(s)
	}
	s.timer = time.AfterFunc(s.inactivityTimeout, s.onInactivity)
	return s
}

func (s *Session) UUID() string { return s.uuid }

// Token returns the session's resume token, empty until accepted.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Expired reports whether the session has expired.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// nextOutIndex allocates the next outbound message index. It is called
// both from the inbound handling path and, concurrently, from
// onScopeChanges when a peer session's errgroup goroutine broadcasts a
// scope mutation to this session (scope.emit, scope/scope.go), so the
// counter must be guarded by the same mutex as the rest of Session's
// state to preserve index monotonicity (testable property 3).
func (s *Session) nextOutIndex() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextIndex++
	return s.nextIndex
}

// HandleMessage dispatches one inbound, already-sequenced message (the
// transport reliability layer guarantees strict ascending delivery order,
// spec §4.8). Ping is handled entirely by the transport layer and must
// never reach here.
func (s *Session) HandleMessage(m message.Message) error {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return syncerr.New(syncerr.KindConcurrency, "session: message received on expired session")
	}
	s.mu.Unlock()
	s.resetInactivityTimer()

	switch m.Type {
	case message.KindSessionCreate:
		return s.handleSessionCreate(m)
	case message.KindScopeFetch:
		return s.handleScopeFetch(m)
	case message.KindScopeSync:
		return s.handleScopeSync(m)
	default:
		return syncerr.New(syncerr.KindProtocol, "session: unexpected message type %q", m.Type)
	}
}

func (s *Session) handleSessionCreate(m message.Message) error {
	s.mu.Lock()
	alreadyAccepted := s.accepted
	s.mu.Unlock()
	if alreadyAccepted {
		return syncerr.New(syncerr.KindProtocol, "session: duplicate SessionCreate")
	}

	if s.onAccept != nil {
		if err := s.onAccept(m.Version, m.Params); err != nil {
			_ = s.client.Send(message.SessionCreateReplyError(s.nextOutIndex(), m.Index, err.Error()))
			s.expire()
			return nil
		}
	}

	token, err := newToken()
	if err != nil {
		_ = s.client.Send(message.SessionCreateReplyError(s.nextOutIndex(), m.Index, "session: token generation failed"))
		s.expire()
		return syncerr.Wrap(syncerr.KindBackend, err, "session: token generation failed")
	}

	s.mu.Lock()
	s.accepted = true
	s.token = token
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SessionAccepted()
	}

	return s.client.Send(message.SessionCreateReply(s.nextOutIndex(), m.Index, token))
}

func (s *Session) handleScopeFetch(m message.Message) error {
	s.mu.Lock()
	accepted := s.accepted
	s.mu.Unlock()
	if !accepted {
		return syncerr.New(syncerr.KindProtocol, "session: ScopeFetch before SessionCreate accepted")
	}

	if s.onFetch == nil {
		return s.client.Send(message.ScopeFetchReplyError(s.nextOutIndex(), m.Index, "session: no scope fetch handler configured"))
	}

	sc, err := s.onFetch(m.Name, m.Params)
	if err != nil {
		return s.client.Send(message.ScopeFetchReplyError(s.nextOutIndex(), m.Index, err.Error()))
	}

	s.mu.Lock()
	idx := len(s.scopes)
	bs := &boundScope{scope: sc}
	bs.unsubscribe = sc.Subscribe(func(applied []fragment.Fragment, opts scope.ApplyOptions) {
		s.onScopeChanges(idx, applied, opts)
	})
	s.scopes = append(s.scopes, bs)
	s.mu.Unlock()

	if err := s.client.Send(message.ScopeFetchReply(s.nextOutIndex(), m.Index, idx)); err != nil {
		return err
	}

	root := sc.GetRoot()
	rootUUID := ""
	var frags []fragment.Fragment
	for _, obj := range sc.Reachable() {
		add := obj.AddFragment()
		f := fragment.FromAddData(add)
		if root != nil && obj.UUID() == root.UUID() {
			// The root object's own fragment is coerced to `change` so the
			// client can reconcile with any root it already holds (spec §4.7).
			f.Type = fragment.Change
			rootUUID = obj.UUID()
		}
		frags = append(frags, f)
	}
	return s.client.Send(message.ScopeState(s.nextOutIndex(), idx, rootUUID, frags))
}

func (s *Session) handleScopeSync(m message.Message) error {
	s.mu.Lock()
	accepted := s.accepted
	var bs *boundScope
	if m.ScopeIndex >= 0 && m.ScopeIndex < len(s.scopes) {
		bs = s.scopes[m.ScopeIndex]
	}
	s.mu.Unlock()

	if !accepted {
		return syncerr.New(syncerr.KindProtocol, "session: ScopeSync before SessionCreate accepted")
	}
	if bs == nil {
		return syncerr.New(syncerr.KindReference, "session: unknown scope index %d", m.ScopeIndex)
	}

	opts := scope.ApplyOptions{Atomic: m.Atomic, Context: s.client}

	var results []scope.FragmentResult
	var err error
	if m.Procedure != "" {
		results, err = bs.scope.ApplyProcedure(m.Procedure, m.Fragments, opts)
	} else {
		results, err = bs.scope.ApplySyncFragments(m.Fragments, opts)
	}
	if err != nil {
		// A backend/procedure-level error aborts the whole batch; report it
		// uniformly as a failure on every fragment so the client can
		// reconcile (spec §7 propagation policy).
		replies := make([]message.FragmentReply, len(m.Fragments))
		for i := range replies {
			replies[i] = message.FragmentReply{OK: false, Error: err.Error()}
		}
		return s.client.Send(message.ScopeSyncReply(s.nextOutIndex(), m.Index, replies))
	}

	replies := make([]message.FragmentReply, len(results))
	for i, r := range results {
		if r.OK {
			replies[i] = message.FragmentReply{OK: true}
		} else {
			replies[i] = message.FragmentReply{OK: false, Error: r.Error.Error()}
		}
	}
	return s.client.Send(message.ScopeSyncReply(s.nextOutIndex(), m.Index, replies))
}

// onScopeChanges forwards a scope's changes event to this session as an
// outbound ScopeSync, unless this session's own client originated the
// batch (originator suppression, spec §4.7).
func (s *Session) onScopeChanges(scopeIndex int, applied []fragment.Fragment, opts scope.ApplyOptions) {
	if opts.Context == s.client {
		return
	}
	s.mu.Lock()
	expired := s.expired
	s.mu.Unlock()
	if expired {
		return
	}
	if err := s.client.Send(message.ScopeSync(s.nextOutIndex(), scopeIndex, applied, false, "")); err != nil {
		s.logger.Warn("session: forwarding scope change failed", "error", err, "session", s.uuid)
	}
}

func (s *Session) resetInactivityTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired || s.timer == nil {
		return
	}
	s.timer.Reset(s.inactivityTimeout)
}

func (s *Session) onInactivity() {
	s.expire()
}

// Expire unsubscribes from every bound scope, clears the scope list and
// marks the session expired. It is idempotent and fires the expire
// handler exactly once (spec §4.7).
func (s *Session) Expire() { s.expire() }

func (s *Session) expire() {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return
	}
	s.expired = true
	wasAccepted := s.accepted
	scopes := s.scopes
	s.scopes = nil
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	for _, bs := range scopes {
		if bs.unsubscribe != nil {
			bs.unsubscribe()
		}
	}
	if s.metrics != nil && wasAccepted {
		s.metrics.SessionExpired()
	}
	if s.onExpire != nil {
		s.onExpire(s)
	}
}

func newToken() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return id.String() + "." + hex.EncodeToString(buf), nil
}
