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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Request is a procedure's remote call, built from its ExecSpec and an
// expr.Context (spec §4.5 step 2: "execute the remote call through the
// injected HTTP-like client").
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    map[string]any
}

// Response is the remote call's result.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the injected remote-call substrate. Core scope explicitly
// excludes its implementation (spec §4.5 step 3: "out of core scope");
// this is the seam a caller plugs a real backend into.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// DefaultClient is a plain net/http-backed Client. No REST client library
// appears anywhere in the retrieval pack to ground this on, so it is
// stdlib net/http, JSON-encoding the body the same way every JSON-DSL
// surface elsewhere in this module does.
type DefaultClient struct {
	HTTP *http.Client
}

// NewDefaultClient builds a DefaultClient with a bounded request timeout.
func NewDefaultClient() *DefaultClient {
	return &DefaultClient{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *DefaultClient) Do(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
