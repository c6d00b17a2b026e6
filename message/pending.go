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

	"github.com/bittoy/syncengine/logger"
)

// OrderedSink composes outgoing frames in submission order even when the
// encode step itself runs asynchronously (spec §4.6: "a small pending-queue
// preserves sequence before emission"). Every Submit call is handed a
// monotonically increasing ticket; emission only ever advances in ticket
// order, so a slow encode never lets a later message jump ahead of an
// earlier one.
type OrderedSink struct {
	mu       sync.Mutex
	nextSeq  uint64
	nextEmit uint64
	pending  map[uint64]ticket
	emit     func([]byte) error
	logger   logger.Logger
}

type ticket struct {
	data []byte
	err  error
}

// NewOrderedSink builds a sink that calls emit, in ticket order, for every
// successfully encoded submission.
func NewOrderedSink(emit func([]byte) error, log logger.Logger) *OrderedSink {
	if log == nil {
		log = logger.Nop{}
	}
	return &OrderedSink{pending: make(map[uint64]ticket), emit: emit, logger: log}
}

// Submit runs encode on the calling goroutine and schedules its result for
// in-order emission; it returns once encode has completed. SubmitAsync is
// the form that does not wait for encode.
func (o *OrderedSink) Submit(encode func() ([]byte, error)) {
	o.mu.Lock()
	seq := o.nextSeq
	o.nextSeq++
	o.mu.Unlock()

	data, err := encode()
	o.complete(seq, data, err)
}

// SubmitAsync is Submit's fully asynchronous form: encode runs on its own
// goroutine, matching the "underlying encoder works asynchronously" case
// the spec calls out explicitly.
func (o *OrderedSink) SubmitAsync(encode func() ([]byte, error)) {
	o.mu.Lock()
	seq := o.nextSeq
	o.nextSeq++
	o.mu.Unlock()

	go func() {
		data, err := encode()
		o.complete(seq, data, err)
	}()
}

func (o *OrderedSink) complete(seq uint64, data []byte, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[seq] = ticket{data: data, err: err}
	for {
		t, ok := o.pending[o.nextEmit]
		if !ok {
			return
		}
		delete(o.pending, o.nextEmit)
		o.nextEmit++
		if t.err != nil {
			o.logger.Warn("message: dropping frame that failed to encode", "error", t.err)
			continue
		}
		if emitErr := o.emit(t.data); emitErr != nil {
			o.logger.Warn("message: emit failed", "error", emitErr)
		}
	}
}
