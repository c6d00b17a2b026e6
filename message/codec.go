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
	"bytes"
	"encoding/json"

	"github.com/bittoy/syncengine/syncerr"
)

var validTypes = map[Type]bool{
	KindSessionCreate:      true,
	KindSessionCreateReply: true,
	KindScopeFetch:         true,
	KindScopeFetchReply:    true,
	KindScopeState:         true,
	KindScopeSync:          true,
	KindScopeSyncReply:     true,
	KindPing:               true,
	KindReply:              true,
}

// Validate rejects an unknown type and the ScopeSync.procedure/atomic
// combination the catalog forbids (spec §4.6: "procedure ... only valid
// when atomic is true").
func Validate(m Message) error {
	if !validTypes[m.Type] {
		return syncerr.New(syncerr.KindProtocol, "message: unknown type %q", m.Type)
	}
	if m.Type == KindScopeSync && m.Procedure != "" && !m.Atomic {
		return syncerr.New(syncerr.KindProtocol, "message: ScopeSync.procedure requires atomic=true")
	}
	return nil
}

// Encode serializes a single message to its wire JSON form.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a single message from its wire JSON form and validates it.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, syncerr.Wrap(syncerr.KindProtocol, err, "message: malformed JSON")
	}
	if err := Validate(m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// EncodeBatch serializes a slice of messages as a JSON array.
func EncodeBatch(ms []Message) ([]byte, error) {
	return json.Marshal(ms)
}

// DecodeFrame parses one frame of input, which per spec §4.6 may be
// either a single JSON message object or an array of them ("arrays
// flatten"); the result is always the flattened slice form.
func DecodeFrame(data []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, syncerr.New(syncerr.KindProtocol, "message: empty frame")
	}
	if trimmed[0] == '[' {
		var raw []Message
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, syncerr.Wrap(syncerr.KindProtocol, err, "message: malformed JSON array")
		}
		for _, m := range raw {
			if err := Validate(m); err != nil {
				return nil, err
			}
		}
		return raw, nil
	}
	m, err := Decode(trimmed)
	if err != nil {
		return nil, err
	}
	return []Message{m}, nil
}
