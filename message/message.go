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

// Package message implements the wire message catalog from spec §4.6: a
// flat, index-ordered, JSON-encodable record for every message type the
// session and transport layers exchange. Like fragment.Fragment, every
// message shape is one struct with unused fields left zero/omitted, the
// same generic-envelope idiom the teacher's types.RuleMsg uses for its own
// message payloads.
package message

import "github.com/bittoy/syncengine/fragment"

// Type discriminates the wire message catalog.
type Type string

const (
	KindSessionCreate      Type = "SessionCreate"
	KindSessionCreateReply Type = "SessionCreateReply"
	KindScopeFetch         Type = "ScopeFetch"
	KindScopeFetchReply    Type = "ScopeFetchReply"
	KindScopeState         Type = "ScopeState"
	KindScopeSync          Type = "ScopeSync"
	KindScopeSyncReply     Type = "ScopeSyncReply"
	KindPing               Type = "Ping"
	KindReply              Type = "Reply"
)

// FragmentReply is one entry of a ScopeSyncReply.FragmentReplies slice: the
// per-fragment {ok} or {error} outcome from spec §4.3/§4.6.
type FragmentReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Message is every wire message shape the catalog defines, flattened into
// one struct. Index is the monotonically increasing per-connection index
// from spec §4.6; index 0 is reserved for control messages (Ping) that are
// never sequenced or retransmitted by the reliability layer (spec §4.8).
type Message struct {
	Type  Type   `json:"type"`
	Index uint64 `json:"index"`

	// SessionCreate
	Version string         `json:"version,omitempty"`
	Params  map[string]any `json:"params,omitempty"`

	// SessionCreateReply / ScopeFetchReply / ScopeSyncReply / Reply
	ReplyTo uint64 `json:"replyTo,omitempty"`
	Error   string `json:"error,omitempty"`

	// SessionCreateReply
	SessionToken string `json:"sessionToken,omitempty"`

	// ScopeFetch
	Name string `json:"name,omitempty"`

	// ScopeFetchReply / ScopeState / ScopeSync
	ScopeIndex int `json:"scopeIndex,omitempty"`

	// ScopeState
	RootUUID string `json:"rootUUID,omitempty"`

	// ScopeState / ScopeSync
	Fragments []fragment.Fragment `json:"fragments,omitempty"`

	// ScopeSync
	Atomic    bool   `json:"atomic,omitempty"`
	Procedure string `json:"procedure,omitempty"`

	// ScopeSyncReply
	FragmentReplies []FragmentReply `json:"fragmentReplies,omitempty"`

	// Ping
	Ack           uint64 `json:"ack,omitempty"`
	ResendMissing bool   `json:"resendMissing,omitempty"`

	// Reply
	Response any `json:"response,omitempty"`
}

// SessionCreate builds a SessionCreate message.
func SessionCreate(index uint64, version string, params map[string]any) Message {
	return Message{Type: KindSessionCreate, Index: index, Version: version, Params: params}
}

// SessionCreateReply builds a successful SessionCreateReply.
func SessionCreateReply(index, replyTo uint64, token string) Message {
	return Message{Type: KindSessionCreateReply, Index: index, ReplyTo: replyTo, SessionToken: token}
}

// SessionCreateReplyError builds a denied SessionCreateReply.
func SessionCreateReplyError(index, replyTo uint64, reason string) Message {
	return Message{Type: KindSessionCreateReply, Index: index, ReplyTo: replyTo, Error: reason}
}

// ScopeFetch builds a ScopeFetch request.
func ScopeFetch(index uint64, name string, params map[string]any) Message {
	return Message{Type: KindScopeFetch, Index: index, Name: name, Params: params}
}

// ScopeFetchReply builds a successful ScopeFetchReply.
func ScopeFetchReply(index, replyTo uint64, scopeIndex int) Message {
	return Message{Type: KindScopeFetchReply, Index: index, ReplyTo: replyTo, ScopeIndex: scopeIndex}
}

// ScopeFetchReplyError builds a denied ScopeFetchReply.
func ScopeFetchReplyError(index, replyTo uint64, reason string) Message {
	return Message{Type: KindScopeFetchReply, Index: index, ReplyTo: replyTo, Error: reason}
}

// ScopeState builds the initial full-graph snapshot sent right after a
// successful ScopeFetchReply.
func ScopeState(index uint64, scopeIndex int, rootUUID string, frags []fragment.Fragment) Message {
	return Message{Type: KindScopeState, Index: index, ScopeIndex: scopeIndex, RootUUID: rootUUID, Fragments: frags}
}

// ScopeSync builds an inbound or outbound ScopeSync.
func ScopeSync(index uint64, scopeIndex int, frags []fragment.Fragment, atomic bool, procedure string) Message {
	return Message{Type: KindScopeSync, Index: index, ScopeIndex: scopeIndex, Fragments: frags, Atomic: atomic, Procedure: procedure}
}

// ScopeSyncReply builds the per-fragment reply to an inbound ScopeSync.
func ScopeSyncReply(index, replyTo uint64, replies []FragmentReply) Message {
	return Message{Type: KindScopeSyncReply, Index: index, ReplyTo: replyTo, FragmentReplies: replies}
}

// PingMsg builds a keepalive/ack Ping. Index is always 0: Ping is the
// control message excluded from sequencing (spec §4.8).
func PingMsg(ack uint64, resendMissing bool) Message {
	return Message{Type: KindPing, Index: 0, Ack: ack, ResendMissing: resendMissing}
}

// ReplyMsg builds a generic Reply.
func ReplyMsg(index, replyTo uint64, response any) Message {
	return Message{Type: KindReply, Index: index, ReplyTo: replyTo, Response: response}
}
