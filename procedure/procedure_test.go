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

package procedure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/scope"
	"github.com/bittoy/syncengine/syncerr"
)

// chatRoomRegistry builds the ChatRoom/Message pair from spec §8 scenario
// S5: a ChatRoom.postMessage procedure guarded by two constraints.
func chatRoomRegistry(t *testing.T) (*model.Registry, *model.Type) {
	t.Helper()
	reg := model.NewRegistry()

	postMessage := &Procedure{
		Name: "postMessage",
		Constraints: []Constraint{
			{
				FragmentType: fragment.Change,
				ClassName:    "ChatRoom",
				Properties:   map[string]Condition{"messages": ArrayInsert()},
			},
			{
				FragmentType: fragment.Add,
				ClassName:    "Message",
				Properties: map[string]Condition{
					"author":   HasNewValue(),
					"postedAt": HasNewValue(),
					"text":     HasNewValue(),
				},
				AllowAdditionalProperties: false,
			},
		},
		Exec: ExecSpec{
			Method:      "POST",
			URLTemplate: "https://example.com/rooms/:room/messages",
			Params: map[string]string{
				"room": "$incoming.ChatRoom.change.uuid",
			},
			Body: map[string]string{
				"text":   "$incoming.Message.add.text",
				"author": "$incoming.Message.add.author",
			},
		},
	}

	_, err := reg.Declare("Message", "", func(b *model.Builder) {
		b.Scalar("author", model.KindString)
		b.Scalar("postedAt", model.KindNumber)
		b.Scalar("text", model.KindString)
	})
	require.NoError(t, err)

	_, err = reg.Declare("ChatRoom", "", func(b *model.Builder) {
		b.Scalar("topic", model.KindString)
		b.RefCollection("messages", "Message")
		b.Procedure(postMessage)
	})
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())

	return reg, reg.MustType("ChatRoom")
}

type recordingClient struct {
	req Request
	n   int
}

func (c *recordingClient) Do(_ context.Context, req Request) (Response, error) {
	c.req = req
	c.n++
	return Response{StatusCode: 200}, nil
}

func TestRunProcedureRejectsBatchMissingRequiredProperty(t *testing.T) {
	reg, roomT := chatRoomRegistry(t)
	root := roomT.NewInstance("U0")
	sc := scope.New(reg, roomT, "chat", nil)
	sc.SetRoot(root)

	client := &recordingClient{}
	runner := NewRunner(reg, client)

	_, err := runner.RunProcedure(sc, "ChatRoom.postMessage", []fragment.Fragment{
		{Type: fragment.Change, UUID: "U0", Properties: map[string]any{"messages": []any{"U1"}}},
		// missing "text" makes the Message.add constraint's property-key
		// set unequal, so it can never match.
		{Type: fragment.Add, UUID: "U1", ClassName: "Message", Properties: map[string]any{
			"author": "alice", "postedAt": 100.0,
		}},
	}, scope.ApplyOptions{})

	require.Error(t, err)
	require.True(t, syncerr.Is(err, syncerr.KindValidation))
	require.Contains(t, err.Error(), "postMessage")
	require.Equal(t, 0, client.n, "remote call must not fire when constraints fail to match")
}

func TestRunProcedureAppliesAndCallsRemoteOnMatch(t *testing.T) {
	reg, roomT := chatRoomRegistry(t)
	root := roomT.NewInstance("U0")
	sc := scope.New(reg, roomT, "chat", nil)
	sc.SetRoot(root)

	client := &recordingClient{}
	runner := NewRunner(reg, client)

	results, err := runner.RunProcedure(sc, "ChatRoom.postMessage", []fragment.Fragment{
		{Type: fragment.Change, UUID: "U0", Properties: map[string]any{"messages": []any{"U1"}}},
		{Type: fragment.Add, UUID: "U1", ClassName: "Message", Properties: map[string]any{
			"author": "alice", "postedAt": 100.0, "text": "hi",
		}},
	}, scope.ApplyOptions{})

	require.NoError(t, err)
	require.Len(t, results, 2)
	require.True(t, results[0].OK)
	require.True(t, results[1].OK)

	msg, ok := sc.GetByUUID("U1")
	require.True(t, ok)
	require.True(t, msg.Attached())

	require.Equal(t, 1, client.n)
	require.Equal(t, "https://example.com/rooms/U0/messages", client.req.URL)
	require.Equal(t, "hi", client.req.Body["text"])
	require.Equal(t, "alice", client.req.Body["author"])
}

func TestRunProcedureUnknownNameIsReferenceError(t *testing.T) {
	reg, roomT := chatRoomRegistry(t)
	root := roomT.NewInstance("U0")
	sc := scope.New(reg, roomT, "chat", nil)
	sc.SetRoot(root)

	runner := NewRunner(reg, &recordingClient{})
	_, err := runner.RunProcedure(sc, "ChatRoom.bogus", nil, scope.ApplyOptions{})
	require.Error(t, err)
	require.True(t, syncerr.Is(err, syncerr.KindReference))
}
