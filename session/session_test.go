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

package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/message"
	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/scope"
)

// fakeClient is an in-memory Client recording every message sent to it.
type fakeClient struct {
	mu  sync.Mutex
	out []message.Message
}

func (c *fakeClient) Send(m message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, m)
	return nil
}

func (c *fakeClient) messages() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]message.Message, len(c.out))
	copy(out, c.out)
	return out
}

func canvasScope(t *testing.T) *scope.Scope {
	t.Helper()
	reg := model.NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *model.Builder) {
		b.Scalar("x", model.KindNumber)
		b.Scalar("y", model.KindNumber)
	})
	require.NoError(t, err)
	canvasT, err := reg.Declare("Canvas", "", func(b *model.Builder) {
		b.Scalar("name", model.KindString)
		b.RefCollection("shapes", "Shape")
	})
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())

	shapeT := reg.MustType("Shape")
	root := canvasT.NewInstance("U0")
	root.Set("name", "demo")
	shape := shapeT.NewInstance("U1")
	shape.Set("x", 1.0)
	shape.Set("y", 2.0)

	sc := scope.New(reg, canvasT, "canvas", nil)
	sc.SetRoot(root)
	_, err = sc.ApplySyncFragments([]fragment.Fragment{
		{Type: fragment.Add, UUID: "U1", ClassName: "Shape", Properties: map[string]any{"x": 1.0, "y": 2.0}},
		{Type: fragment.Change, UUID: "U0", Properties: map[string]any{"shapes": []any{"U1"}}},
	}, scope.ApplyOptions{})
	require.NoError(t, err)
	return sc
}

// S1: fetch + state.
func TestFetchAndState(t *testing.T) {
	sc := canvasScope(t)
	client := &fakeClient{}
	s := New(client, WithFetchHandler(func(name string, params map[string]any) (*scope.Scope, error) {
		require.Equal(t, "canvas", name)
		return sc, nil
	}))

	require.NoError(t, s.HandleMessage(message.SessionCreate(1, "1.0.0", nil)))
	require.NoError(t, s.HandleMessage(message.ScopeFetch(2, "canvas", nil)))

	out := client.messages()
	require.Len(t, out, 3)

	require.Equal(t, message.KindSessionCreateReply, out[0].Type)
	require.Equal(t, uint64(1), out[0].ReplyTo)
	require.NotEmpty(t, out[0].SessionToken)

	require.Equal(t, message.KindScopeFetchReply, out[1].Type)
	require.Equal(t, uint64(2), out[1].ReplyTo)
	require.Equal(t, 0, out[1].ScopeIndex)

	require.Equal(t, message.KindScopeState, out[2].Type)
	require.Equal(t, 0, out[2].ScopeIndex)
	require.Equal(t, "U0", out[2].RootUUID)
	require.Len(t, out[2].Fragments, 2)

	byUUID := map[string]fragment.Fragment{}
	for _, f := range out[2].Fragments {
		byUUID[f.UUID] = f
	}
	require.Equal(t, fragment.Change, byUUID["U0"].Type)
	require.Equal(t, fragment.Add, byUUID["U1"].Type)
}

func TestDeniedScopeFetchDoesNotCloseSession(t *testing.T) {
	client := &fakeClient{}
	s := New(client, WithFetchHandler(func(name string, params map[string]any) (*scope.Scope, error) {
		return nil, errDenied{}
	}))

	require.NoError(t, s.HandleMessage(message.SessionCreate(1, "1.0.0", nil)))
	require.NoError(t, s.HandleMessage(message.ScopeFetch(2, "canvas", nil)))

	out := client.messages()
	require.Len(t, out, 2)
	require.Equal(t, message.KindScopeFetchReply, out[1].Type)
	require.NotEmpty(t, out[1].Error)
	require.False(t, s.Expired())
}

type errDenied struct{}

func (errDenied) Error() string { return "not authorized" }

// S6: originator suppression. Two sessions bound to the same scope; the
// originating session only sees its own ScopeSyncReply, the peer sees
// exactly one outbound ScopeSync carrying the same fragment.
func TestOriginatorSuppression(t *testing.T) {
	sc := canvasScope(t)
	fetch := func(name string, params map[string]any) (*scope.Scope, error) { return sc, nil }

	clientA := &fakeClient{}
	sessA := New(clientA, WithFetchHandler(fetch))
	require.NoError(t, sessA.HandleMessage(message.SessionCreate(1, "1.0.0", nil)))
	require.NoError(t, sessA.HandleMessage(message.ScopeFetch(2, "canvas", nil)))

	clientB := &fakeClient{}
	sessB := New(clientB, WithFetchHandler(fetch))
	require.NoError(t, sessB.HandleMessage(message.SessionCreate(1, "1.0.0", nil)))
	require.NoError(t, sessB.HandleMessage(message.ScopeFetch(2, "canvas", nil)))

	clientA.mu.Lock()
	clientA.out = nil
	clientA.mu.Unlock()
	clientB.mu.Lock()
	clientB.out = nil
	clientB.mu.Unlock()

	change := fragment.Fragment{Type: fragment.Change, UUID: "U0", Properties: map[string]any{"name": "renamed"}}
	require.NoError(t, sessA.HandleMessage(message.ScopeSync(3, 0, []fragment.Fragment{change}, false, "")))

	outA := clientA.messages()
	require.Len(t, outA, 1)
	require.Equal(t, message.KindScopeSyncReply, outA[0].Type)

	outB := clientB.messages()
	require.Len(t, outB, 1)
	require.Equal(t, message.KindScopeSync, outB[0].Type)
	require.Len(t, outB[0].Fragments, 1)
	require.Equal(t, "U0", outB[0].Fragments[0].UUID)
}

func TestInactivityExpiryUnsubscribesFromScopes(t *testing.T) {
	sc := canvasScope(t)
	client := &fakeClient{}
	expired := make(chan struct{}, 1)
	s := New(client,
		WithFetchHandler(func(name string, params map[string]any) (*scope.Scope, error) { return sc, nil }),
		WithExpireHandler(func(*Session) { expired <- struct{}{} }),
	)
	require.NoError(t, s.HandleMessage(message.SessionCreate(1, "1.0.0", nil)))
	require.NoError(t, s.HandleMessage(message.ScopeFetch(2, "canvas", nil)))

	s.Expire()
	<-expired
	require.True(t, s.Expired())

	// A subsequent scope change must not reach the expired session.
	client.mu.Lock()
	client.out = nil
	client.mu.Unlock()
	_, err := sc.ApplySyncFragments([]fragment.Fragment{
		{Type: fragment.Change, UUID: "U0", Properties: map[string]any{"name": "after-expiry"}},
	}, scope.ApplyOptions{})
	require.NoError(t, err)
	require.Empty(t, client.messages())
}
