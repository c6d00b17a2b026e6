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

package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/transport"
)

func TestConnRoundTrip(t *testing.T) {
	upgraded := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r, nil)
		require.NoError(t, err)
		upgraded <- c
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn := <-upgraded
	defer serverConn.Close(transport.CloseNormal, "test done")

	require.NoError(t, serverConn.SendRaw([]byte(`{"type":"Ping","ack":0}`)))
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, `{"type":"Ping","ack":0}`, string(data))

	require.NoError(t, clientConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Ping","ack":1}`)))
	got, err := serverConn.Recv()
	require.NoError(t, err)
	require.Equal(t, `{"type":"Ping","ack":1}`, string(got))
}
