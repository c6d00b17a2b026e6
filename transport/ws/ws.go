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

// Package ws is the default transport.Connection from spec §6: a
// bidirectional websocket-framed channel, using gorilla/websocket (the
// teacher's own indirect dependency, promoted to direct use here since it
// is the natural fit for this exact job).
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bittoy/syncengine/transport"
)

const closeWriteWait = 2 * time.Second

func deadlineNow() time.Time { return time.Now().Add(closeWriteWait) }

// DefaultUpgrader is gorilla/websocket's Upgrader configured with the
// defaults this package expects (one JSON message per frame).
var DefaultUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Conn adapts a *websocket.Conn to transport.Connection.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
}

// New wraps an already-upgraded websocket connection.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Upgrade upgrades an HTTP request to a websocket and wraps it.
func Upgrade(w http.ResponseWriter, r *http.Request, header http.Header) (*Conn, error) {
	c, err := DefaultUpgrader.Upgrade(w, r, header)
	if err != nil {
		return nil, err
	}
	return New(c), nil
}

func (c *Conn) Recv() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

func (c *Conn) SendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close(code int, reason string) error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadlineNow())
	c.writeMu.Unlock()
	return c.ws.Close()
}

var _ transport.Connection = (*Conn)(nil)
