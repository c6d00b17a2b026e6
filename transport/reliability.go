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

// Package transport implements the reliability state machine from spec
// §4.8 — index-ordered delivery, out-of-order buffering, ack-pruned resend
// and keepalive pinging — as a small per-connection state machine driven by
// a Connection collaborator, rather than the nested-callback shape the
// teacher's design note (§9) explicitly says to avoid. Concrete Connection
// implementations (ws, synthetic, mqttconn) live in sibling packages and
// are all driven by this same state machine.
package transport

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/bittoy/syncengine/logger"
	"github.com/bittoy/syncengine/message"
)

// Close codes in the private range reserved by spec §6.
const (
	CloseDenied = 4096
	CloseNormal = 4097
)

// DefaultKeepaliveInterval and DefaultKeepaliveVariance are the spec's
// default ping schedule (spec §4.8): "10s ± 1s".
const (
	DefaultKeepaliveInterval = 10 * time.Second
	DefaultKeepaliveVariance = 2 * time.Second
)

// Connection is the duplex raw-frame pipe a Transport drives. One frame is
// one JSON message (spec §6: "one JSON value per frame").
type Connection interface {
	// Recv blocks for the next inbound frame. It returns an error (any
	// error, including io.EOF) when the connection is no longer usable.
	Recv() ([]byte, error)
	// SendRaw writes one outbound frame.
	SendRaw(data []byte) error
	// Close closes the connection with a close code in the private range.
	Close(code int, reason string) error
}

// Handler receives in-order, deduplicated messages. session.Session
// satisfies this.
type Handler interface {
	HandleMessage(m message.Message) error
}

// Transport wraps a Connection with the reliability state machine. It
// implements session.Client, so a Session can Send through it directly.
type Transport struct {
	mu sync.Mutex

	conn    Connection
	handler Handler
	logger  logger.Logger

	clientIndex uint64
	outOfOrder  map[uint64]message.Message
	nonAcked    []message.Message

	keepaliveInterval time.Duration
	keepaliveVariance time.Duration
	keepaliveTimer    *time.Timer

	metrics MessageCounter

	generation int
	closed     bool
}

// MessageCounter is the narrow slice of metrics.Metrics a Transport needs,
// kept as a small interface here so this package does not have to import
// prometheus directly. metrics.Metrics satisfies it.
type MessageCounter interface {
	IncMessagesSent(msgType string)
	IncMessagesReceived(msgType string)
}

// Option configures a Transport.
type Option func(*Transport)

func WithLogger(l logger.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics wires a MessageCounter so every sent/received message is
// counted by type.
func WithMetrics(m MessageCounter) Option {
	return func(t *Transport) { t.metrics = m }
}

func WithKeepalive(interval, variance time.Duration) Option {
	return func(t *Transport) {
		if interval > 0 {
			t.keepaliveInterval = interval
		}
		t.keepaliveVariance = variance
	}
}

// New wraps conn with the reliability state machine and starts its read
// loop and keepalive timer. handler receives in-order inbound messages
// (everything except Ping, which the transport consumes itself).
func New(conn Connection, handler Handler, opts ...Option) *Transport {
	t := &Transport{
		conn:              conn,
		handler:           handler,
		logger:            logger.Nop{},
		outOfOrder:        make(map[uint64]message.Message),
		keepaliveInterval: DefaultKeepaliveInterval,
		keepaliveVariance: DefaultKeepaliveVariance,
	}
	for _, o := range opts {
		o(t)
	}
	t.startLocked()
	return t
}

func (t *Transport) startLocked() {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.mu.Unlock()
	go t.readLoop(gen)
	t.scheduleKeepalive(gen)
}

func (t *Transport) readLoop(gen int) {
	for {
		t.mu.Lock()
		conn := t.conn
		retired := gen != t.generation
		t.mu.Unlock()
		if retired {
			return
		}
		data, err := conn.Recv()
		if err != nil {
			t.mu.Lock()
			stale := gen != t.generation
			t.mu.Unlock()
			if !stale {
				t.logger.Debug("transport: connection closed", "error", err)
			}
			return
		}
		msgs, err := message.DecodeFrame(data)
		if err != nil {
			t.logger.Warn("transport: dropping malformed frame", "error", err)
			continue
		}
		for _, m := range msgs {
			t.inbound(m)
		}
	}
}

// inbound applies spec §4.8's ordering rules, then dispatches deduplicated,
// in-order messages (except Ping, handled here) to the handler.
func (t *Transport) inbound(m message.Message) {
	if t.metrics != nil {
		t.metrics.IncMessagesReceived(string(m.Type))
	}
	if m.Type == message.KindPing {
		t.handlePing(m)
		return
	}

	if m.Index == 0 {
		t.deliver(m)
		return
	}

	t.mu.Lock()
	switch {
	case m.Index <= t.clientIndex:
		t.mu.Unlock()
		t.logger.Debug("transport: dropping duplicate", "index", m.Index)
		return
	case m.Index == t.clientIndex+1:
		t.clientIndex = m.Index
		ready := []message.Message{m}
		for {
			next, ok := t.outOfOrder[t.clientIndex+1]
			if !ok {
				break
			}
			delete(t.outOfOrder, t.clientIndex+1)
			t.clientIndex++
			ready = append(ready, next)
		}
		t.mu.Unlock()
		for _, rm := range ready {
			t.deliver(rm)
		}
	default:
		t.outOfOrder[m.Index] = m
		t.mu.Unlock()
	}
}

func (t *Transport) deliver(m message.Message) {
	if t.handler == nil {
		return
	}
	if err := t.handler.HandleMessage(m); err != nil {
		t.logger.Warn("transport: handler error", "error", err, "type", m.Type)
	}
}

// handlePing processes an inbound Ping: prune acked sends, and if
// resendMissing is set, resend everything still outstanding.
func (t *Transport) handlePing(m message.Message) {
	t.mu.Lock()
	kept := t.nonAcked[:0:0]
	for _, pending := range t.nonAcked {
		if pending.Index > m.Ack {
			kept = append(kept, pending)
		}
	}
	t.nonAcked = kept
	resend := m.ResendMissing
	clientIdx := t.clientIndex
	toResend := append([]message.Message(nil), t.nonAcked...)
	t.mu.Unlock()

	if !resend {
		return
	}
	if err := t.sendRaw(message.PingMsg(clientIdx, true)); err != nil {
		t.logger.Warn("transport: resend-ack ping failed", "error", err)
		return
	}
	sort.Slice(toResend, func(i, j int) bool { return toResend[i].Index < toResend[j].Index })
	for _, m := range toResend {
		if err := t.sendRaw(m); err != nil {
			t.logger.Warn("transport: resend failed", "error", err, "index", m.Index)
			return
		}
	}
}

// Send implements session.Client: every non-zero-index message is recorded
// in the outstanding-send buffer before transmission (spec §4.8).
func (t *Transport) Send(m message.Message) error {
	if m.Index != 0 {
		t.mu.Lock()
		t.nonAcked = append(t.nonAcked, m)
		t.mu.Unlock()
	}
	return t.sendRaw(m)
}

func (t *Transport) sendRaw(m message.Message) error {
	data, err := message.Encode(m)
	if err != nil {
		return err
	}
	t.resetKeepalive()
	if t.metrics != nil {
		t.metrics.IncMessagesSent(string(m.Type))
	}
	return t.conn.SendRaw(data)
}

func (t *Transport) resetKeepalive() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.keepaliveTimer != nil {
		t.keepaliveTimer.Reset(t.jitteredInterval())
	}
}

func (t *Transport) jitteredInterval() time.Duration {
	if t.keepaliveVariance <= 0 {
		return t.keepaliveInterval
	}
	half := t.keepaliveVariance / 2
	offset := time.Duration(rand.Int63n(int64(2*half+1))) - half
	return t.keepaliveInterval + offset
}

func (t *Transport) scheduleKeepalive(gen int) {
	t.mu.Lock()
	if t.closed || gen != t.generation {
		t.mu.Unlock()
		return
	}
	delay := t.jitteredInterval()
	t.keepaliveTimer = time.AfterFunc(delay, func() { t.fireKeepalive(gen) })
	t.mu.Unlock()
}

func (t *Transport) fireKeepalive(gen int) {
	t.mu.Lock()
	if t.closed || gen != t.generation {
		t.mu.Unlock()
		return
	}
	clientIdx := t.clientIndex
	t.mu.Unlock()

	if err := t.sendRaw(message.PingMsg(clientIdx, false)); err != nil {
		t.logger.Debug("transport: keepalive ping failed", "error", err)
	}
	t.scheduleKeepalive(gen)
}

// ResumeWithConnection replaces the live connection under this transport
// (spec §4.8 reconnection: "A new connection bearing a known sessionToken
// ... replaces the live connection on the existing transport via
// resumeWithConnection"). Pending (non-acked) writes flush on the new
// connection in index order; a fresh read loop starts on it.
func (t *Transport) ResumeWithConnection(conn Connection) error {
	t.mu.Lock()
	t.conn = conn
	t.generation++
	gen := t.generation
	pending := append([]message.Message(nil), t.nonAcked...)
	t.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].Index < pending[j].Index })
	go t.readLoop(gen)
	t.scheduleKeepalive(gen)
	for _, m := range pending {
		if err := t.sendRaw(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection with the given private-range
// close code.
func (t *Transport) Close(code int, reason string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.keepaliveTimer != nil {
		t.keepaliveTimer.Stop()
	}
	t.mu.Unlock()
	return t.conn.Close(code, reason)
}

// ClientIndex returns the last in-order client message index processed,
// for tests and diagnostics.
func (t *Transport) ClientIndex() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clientIndex
}
