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

// Package synthetic implements the request/response substrate transport
// from spec §6: each upstream request embeds a queued batch of inbound
// frames, and each response drains the server-side outbound queue. Per
// the spec §9 design note ("Global listener map ... make it an explicit
// collaborator"), Listener is an ordinary constructed value, not a
// package-level singleton — callers create one Listener per server and
// pass it to their HTTP handler explicitly.
package synthetic

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/bittoy/syncengine/transport"
)

var errClosed = errors.New("synthetic: connection closed")

// Conn is one synthetic connection: inbound frames arrive via Push (driven
// by an upstream HTTP handler decoding a request body), and outbound
// frames accumulate until Drain pulls them for the HTTP response.
type Conn struct {
	mu      sync.Mutex
	cond    *sync.Cond
	inbox   [][]byte
	outbox  [][]byte
	closed  bool
}

func newConn() *Conn {
	c := &Conn{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Push enqueues one inbound frame (one decoded request-body entry).
func (c *Conn) Push(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.inbox = append(c.inbox, data)
	c.cond.Signal()
}

func (c *Conn) Recv() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.inbox) == 0 && !c.closed {
		c.cond.Wait()
	}
	if len(c.inbox) == 0 {
		return nil, errClosed
	}
	data := c.inbox[0]
	c.inbox = c.inbox[1:]
	return data, nil
}

func (c *Conn) SendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	c.outbox = append(c.outbox, data)
	return nil
}

func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cond.Broadcast()
	return nil
}

// Drain removes and returns every outbound frame queued since the last
// Drain, for the HTTP handler to fold into one response body.
func (c *Conn) Drain() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.outbox
	c.outbox = nil
	return out
}

var _ transport.Connection = (*Conn)(nil)

// Listener maps session tokens to their live synthetic Conn, so a later
// upstream request bearing the same token is routed to the same
// transport.Transport instead of minting a new one. It is an explicit,
// per-server collaborator: construct one with New and pass it to your
// request handler, rather than reaching for a package global.
type Listener struct {
	mu      sync.Mutex
	byToken map[string]*transport.Transport
}

// New constructs an empty Listener.
func New() *Listener {
	return &Listener{byToken: make(map[string]*transport.Transport)}
}

// Accept registers a freshly created Transport under token so a later
// request bearing the same token resumes it instead of creating a new
// session.
func (l *Listener) Accept(token string, tr *transport.Transport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byToken[token] = tr
}

// Lookup returns the Transport registered for token, if any.
func (l *Listener) Lookup(token string) (*transport.Transport, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tr, ok := l.byToken[token]
	return tr, ok
}

// Forget removes token's entry, called on session expiry.
func (l *Listener) Forget(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byToken, token)
}

// NewConn builds a fresh synthetic Conn, for the caller to wrap in a
// transport.Transport and register with Accept once a session token is
// known.
func NewConn() *Conn { return newConn() }

// HandleRequestBody decodes an upstream request body (a JSON array of
// strings, each one encoded message frame, the embedded "queued batch" from
// spec §6) and pushes each one into conn, then drains conn's outbound queue
// and encodes it the same way, as a JSON array of frame strings, for the
// response body.
func HandleRequestBody(conn *Conn, body []byte) ([]byte, error) {
	var frames []string
	if err := json.Unmarshal(body, &frames); err != nil {
		return nil, err
	}
	for _, f := range frames {
		conn.Push([]byte(f))
	}
	drained := conn.Drain()
	out := make([]string, len(drained))
	for i, d := range drained {
		out[i] = string(d)
	}
	return json.Marshal(out)
}
