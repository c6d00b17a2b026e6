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

// Package syncerr defines the typed error kinds shared across the sync
// engine, so callers at the session/transport boundary can decide whether a
// failure is a per-fragment reply, a connection close, or a soft expiry.
package syncerr

import "fmt"

// Kind classifies a syncengine error per the error-handling design.
type Kind string

const (
	KindProtocol      Kind = "protocol"
	KindAuthorization Kind = "authorization"
	KindReference     Kind = "reference"
	KindValidation    Kind = "validation"
	KindConcurrency   Kind = "concurrency"
	KindBackend       Kind = "backend"
	KindRemote        Kind = "remote"
)

// Error is a typed syncengine error carrying a Kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}
