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

package message

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/syncerr"
)

func TestRoundTripMessage(t *testing.T) {
	m := ScopeState(3, 0, "U0", []fragment.Fragment{
		{Type: fragment.Change, UUID: "U0", ClassName: "Canvas", Properties: map[string]any{"name": "demo"}},
	})
	data, err := Encode(m)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestDecodeFrameFlattensArray(t *testing.T) {
	data, err := EncodeBatch([]Message{
		SessionCreate(1, "1.0.0", nil),
		ScopeFetch(2, "canvas", nil),
	})
	require.NoError(t, err)

	got, err := DecodeFrame(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, KindSessionCreate, got[0].Type)
	require.Equal(t, KindScopeFetch, got[1].Type)
}

func TestDecodeFrameSingleObject(t *testing.T) {
	data, err := Encode(PingMsg(5, true))
	require.NoError(t, err)

	got, err := DecodeFrame(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, KindPing, got[0].Type)
}

func TestValidateUnknownType(t *testing.T) {
	err := Validate(Message{Type: "Bogus"})
	require.Error(t, err)
	require.True(t, syncerr.Is(err, syncerr.KindProtocol))
}

func TestValidateProcedureRequiresAtomic(t *testing.T) {
	err := Validate(ScopeSync(1, 0, nil, false, "Chat.postMessage"))
	require.Error(t, err)
	require.True(t, syncerr.Is(err, syncerr.KindProtocol))
}

func TestOrderedSinkPreservesSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var emitted []string
	sink := NewOrderedSink(func(b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, string(b))
		return nil
	}, nil)

	release := make(chan struct{})
	sink.SubmitAsync(func() ([]byte, error) {
		<-release // the slowest encode, submitted first
		return []byte("a"), nil
	})
	sink.SubmitAsync(func() ([]byte, error) { return []byte("b"), nil })
	sink.SubmitAsync(func() ([]byte, error) { return []byte("c"), nil })

	require.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emitted) > 0
	}, 50*time.Millisecond, 10*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emitted) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b", "c"}, emitted)
}
