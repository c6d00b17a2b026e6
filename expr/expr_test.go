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

package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/fragment"
	"github.com/bittoy/syncengine/model"
	"github.com/bittoy/syncengine/scope"
)

func buildChatRegistry(t *testing.T) (*model.Registry, *model.Type, *model.Type) {
	t.Helper()
	reg := model.NewRegistry()
	_, err := reg.Declare("Message", "", func(b *model.Builder) {
		b.Scalar("body", model.KindString)
	})
	require.NoError(t, err)
	_, err = reg.Declare("ChatRoom", "", func(b *model.Builder) {
		b.Scalar("topic", model.KindString)
		b.RefCollection("messages", "Message")
	})
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())
	return reg, reg.MustType("ChatRoom"), reg.MustType("Message")
}

func TestEvalRootModelKeypath(t *testing.T) {
	reg, roomT, _ := buildChatRegistry(t)
	root := roomT.NewInstance("R0")
	root.Set("topic", "general")
	sc := scope.New(reg, roomT, "chat", nil)
	sc.SetRoot(root)

	v, err := Eval(Context{Scope: sc}, "$rootModel.topic")
	require.NoError(t, err)
	require.Equal(t, "general", v)
}

func TestEvalScopeNameAndParams(t *testing.T) {
	reg, roomT, _ := buildChatRegistry(t)
	sc := scope.New(reg, roomT, "chat-room-1", map[string]any{"owner": "alice"})
	sc.SetRoot(roomT.NewInstance("R0"))

	name, err := Eval(Context{Scope: sc}, "$scope.name")
	require.NoError(t, err)
	require.Equal(t, "chat-room-1", name)

	owner, err := Eval(Context{Scope: sc}, "$scope.params.owner")
	require.NoError(t, err)
	require.Equal(t, "alice", owner)
}

func TestEvalModelFind(t *testing.T) {
	reg, roomT, msgT := buildChatRegistry(t)
	root := roomT.NewInstance("R0")
	sc := scope.New(reg, roomT, "chat", nil)
	sc.SetRoot(root)

	_, err := sc.ApplySyncFragments([]fragment.Fragment{
		{Type: fragment.Add, UUID: "M1", ClassName: "Message", Properties: map[string]any{"body": "hi"}},
	}, scope.ApplyOptions{})
	require.NoError(t, err)
	_ = msgT

	ctx := Context{
		Scope: sc,
		Incoming: map[string][]fragment.Fragment{
			"Message.add": {{UUID: "M1", Properties: map[string]any{"body": "hi"}}},
		},
	}
	v, err := Eval(ctx, "$model.find($incoming.Message.add.uuid).body")
	require.NoError(t, err)
	require.Equal(t, "hi", v)
}

func TestEvalIncomingField(t *testing.T) {
	ctx := Context{
		Incoming: map[string][]fragment.Fragment{
			"Message.add": {{UUID: "M1", Properties: map[string]any{"body": "hello"}}},
		},
	}
	v, err := Eval(ctx, "$incoming.Message.add.body")
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestEvalIncomingInsertedIndex(t *testing.T) {
	ctx := Context{
		Incoming: map[string][]fragment.Fragment{
			"ChatRoom.change": {{UUID: "R0", Properties: map[string]any{"messages": []any{"M1", "M2"}}}},
		},
		Options: Options{
			PriorCollections: map[string][]any{"R0.messages": {"M1"}},
		},
	}
	v, err := Eval(ctx, "$incoming.ChatRoom.change.messages[inserted[0]]")
	require.NoError(t, err)
	require.Equal(t, "M2", v)
}

func TestEvalIncomingRemovedIndex(t *testing.T) {
	ctx := Context{
		Incoming: map[string][]fragment.Fragment{
			"ChatRoom.change": {{UUID: "R0", Properties: map[string]any{"messages": []any{"M2"}}}},
		},
		Options: Options{
			PriorCollections: map[string][]any{"R0.messages": {"M1", "M2"}},
		},
	}
	v, err := Eval(ctx, "$incoming.ChatRoom.change.messages[removed[0]]")
	require.NoError(t, err)
	require.Equal(t, "M1", v)
}

func TestEvalCaseWithPlainMapping(t *testing.T) {
	ctx := Context{
		Incoming: map[string][]fragment.Fragment{
			"Message.add": {{UUID: "M1", Properties: map[string]any{"body": "hello"}}},
		},
		Options: Options{
			Cases: map[string]any{"severity": map[string]any{"hello": "low"}},
		},
	}
	v, err := Eval(ctx, "$case.severity($incoming.Message.add.body)")
	require.NoError(t, err)
	require.Equal(t, "low", v)
}

func TestEvalCaseWithScript(t *testing.T) {
	ctx := Context{
		Incoming: map[string][]fragment.Fragment{
			"Message.add": {{UUID: "M1", Properties: map[string]any{"body": "hello"}}},
		},
		Options: Options{
			Cases: map[string]any{"upper": ScriptCase{Source: "key.toUpperCase()"}},
		},
	}
	v, err := Eval(ctx, "$case.upper($incoming.Message.add.body)")
	require.NoError(t, err)
	require.Equal(t, "HELLO", v)
}

func TestParseMalformedExpressionFails(t *testing.T) {
	_, err := Parse("$bogus.thing")
	require.Error(t, err)
}
