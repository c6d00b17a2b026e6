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

package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/message"
)

// fakeConn is an in-memory Connection: inbound frames are fed via a
// channel, outbound frames are recorded.
type fakeConn struct {
	mu     sync.Mutex
	in     chan []byte
	out    []message.Message
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 64)}
}

func (c *fakeConn) Recv() ([]byte, error) {
	data, ok := <-c.in
	if !ok {
		return nil, errors.New("closed")
	}
	return data, nil
}

func (c *fakeConn) SendRaw(data []byte) error {
	m, err := message.Decode(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, m)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.in)
	return nil
}

func (c *fakeConn) outbound() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]message.Message, len(c.out))
	copy(out, c.out)
	return out
}

func (c *fakeConn) push(t *testing.T, m message.Message) {
	t.Helper()
	data, err := message.Encode(m)
	require.NoError(t, err)
	c.in <- data
}

// fakeHandler records delivered messages in arrival order.
type fakeHandler struct {
	mu  sync.Mutex
	got []message.Message
}

func (h *fakeHandler) HandleMessage(m message.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, m)
	return nil
}

func (h *fakeHandler) delivered() []message.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]message.Message, len(h.got))
	copy(out, h.got)
	return out
}

// S3: out-of-order arrival 1, 3, 2 is delivered to the handler as 1, 2, 3.
func TestOutOfOrderArrivalDrains(t *testing.T) {
	conn := newFakeConn()
	handler := &fakeHandler{}
	tr := New(conn, handler, WithKeepalive(time.Hour, 0))
	defer tr.Close(CloseNormal, "test done")

	conn.push(t, message.ScopeSync(1, 0, nil, false, ""))
	conn.push(t, message.ScopeSync(3, 0, nil, false, ""))
	conn.push(t, message.ScopeSync(2, 0, nil, false, ""))

	require.Eventually(t, func() bool { return len(handler.delivered()) == 3 }, time.Second, 5*time.Millisecond)
	got := handler.delivered()
	require.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Index, got[1].Index, got[2].Index})
	require.Equal(t, uint64(3), tr.ClientIndex())
}

func TestDuplicateIsDropped(t *testing.T) {
	conn := newFakeConn()
	handler := &fakeHandler{}
	tr := New(conn, handler, WithKeepalive(time.Hour, 0))
	defer tr.Close(CloseNormal, "test done")

	conn.push(t, message.ScopeSync(1, 0, nil, false, ""))
	require.Eventually(t, func() bool { return len(handler.delivered()) == 1 }, time.Second, 5*time.Millisecond)

	conn.push(t, message.ScopeSync(1, 0, nil, false, ""))
	time.Sleep(20 * time.Millisecond)
	require.Len(t, handler.delivered(), 1)
}

// S4: reconnect + ack. Server sent 5,6,7; client ACKed 5; on reconnect the
// client sends Ping(ack=5, resendMissing=true) and expects a resend-ack
// Ping followed by 6 and 7 in order.
func TestResendMissingAfterAck(t *testing.T) {
	conn := newFakeConn()
	handler := &fakeHandler{}
	tr := New(conn, handler, WithKeepalive(time.Hour, 0))
	defer tr.Close(CloseNormal, "test done")

	require.NoError(t, tr.Send(message.ScopeSync(5, 0, nil, false, "")))
	require.NoError(t, tr.Send(message.ScopeSync(6, 0, nil, false, "")))
	require.NoError(t, tr.Send(message.ScopeSync(7, 0, nil, false, "")))

	conn.push(t, message.PingMsg(5, false)) // client acks 5
	time.Sleep(20 * time.Millisecond)

	conn.push(t, message.PingMsg(5, true)) // client requests resend after reconnect
	require.Eventually(t, func() bool { return len(conn.outbound()) >= 6 }, time.Second, 5*time.Millisecond)

	out := conn.outbound()
	// [5, 6, 7, resend-ack-ping, 6, 7]
	require.Equal(t, message.KindPing, out[3].Type)
	require.True(t, out[3].ResendMissing)
	require.Equal(t, uint64(6), out[4].Index)
	require.Equal(t, uint64(7), out[5].Index)
}

func TestResumeWithConnectionFlushesPending(t *testing.T) {
	conn1 := newFakeConn()
	handler := &fakeHandler{}
	tr := New(conn1, handler, WithKeepalive(time.Hour, 0))
	defer tr.Close(CloseNormal, "test done")

	require.NoError(t, tr.Send(message.ScopeSync(1, 0, nil, false, "")))
	require.NoError(t, tr.Send(message.ScopeSync(2, 0, nil, false, "")))

	conn2 := newFakeConn()
	require.NoError(t, tr.ResumeWithConnection(conn2))

	require.Eventually(t, func() bool { return len(conn2.outbound()) == 2 }, time.Second, 5*time.Millisecond)
	out := conn2.outbound()
	require.Equal(t, uint64(1), out[0].Index)
	require.Equal(t, uint64(2), out[1].Index)

	conn2.push(t, message.ScopeSync(1, 0, nil, false, ""))
	require.Eventually(t, func() bool { return len(handler.delivered()) == 1 }, time.Second, 5*time.Millisecond)
}
