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

// Package mqttconn is an additional transport.Connection for embedders
// that prefer pub/sub fan-out over a raw socket (SPEC_FULL.md §4.8's
// added transport list). It publishes outbound frames to
// "<prefix>/down/<sessionToken>" and subscribes to
// "<prefix>/up/<sessionToken>", using the teacher's own
// github.com/eclipse/paho.mqtt.golang dependency. Nothing about the
// reliability state machine (spec §4.8) changes for it: transport.New
// drives this Connection exactly like ws.Conn or synthetic.Conn.
package mqttconn

import (
	"errors"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bittoy/syncengine/transport"
)

var errClosed = errors.New("mqttconn: connection closed")

// Conn adapts a paho MQTT client, topic-scoped to one session token, to
// transport.Connection.
type Conn struct {
	client mqtt.Client
	prefix string
	token  string

	mu     sync.Mutex
	inbox  chan []byte
	closed bool
}

// Option configures a Conn.
type Option func(*Conn)

// WithPublishTimeout is unused today but reserved for a future bounded
// publish wait; present so callers have a stable Option surface to extend.
func WithPublishTimeout(time.Duration) Option { return func(*Conn) {} }

// New subscribes to "<prefix>/up/<token>" on client and returns a Conn
// that publishes outbound frames to "<prefix>/down/<token>".
func New(client mqtt.Client, prefix, token string, opts ...Option) (*Conn, error) {
	c := &Conn{client: client, prefix: prefix, token: token, inbox: make(chan []byte, 256)}
	for _, o := range opts {
		o(c)
	}

	topic := c.prefix + "/up/" + c.token
	tok := client.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		payload := append([]byte(nil), m.Payload()...)
		select {
		case c.inbox <- payload:
		default:
		}
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conn) Recv() ([]byte, error) {
	data, ok := <-c.inbox
	if !ok {
		return nil, errClosed
	}
	return data, nil
}

func (c *Conn) SendRaw(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClosed
	}
	c.mu.Unlock()
	topic := c.prefix + "/down/" + c.token
	tok := c.client.Publish(topic, 1, false, data)
	tok.Wait()
	return tok.Error()
}

func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.inbox)
	c.mu.Unlock()
	tok := c.client.Unsubscribe(c.prefix + "/up/" + c.token)
	tok.Wait()
	return tok.Error()
}

var _ transport.Connection = (*Conn)(nil)
