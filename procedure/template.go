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
	"fmt"
	"strings"

	"github.com/bittoy/syncengine/expr"
)

// buildRequest substitutes every expression occurrence in the ExecSpec
// against ctx: URL path parameters use ":name" placeholders resolved
// through Params, and each header/body entry is itself either an
// expression (a value beginning with "$") or a literal.
func (p *Procedure) buildRequest(ctx expr.Context) (Request, error) {
	url := p.Exec.URLTemplate
	for name, exprStr := range p.Exec.Params {
		val, err := expr.Eval(ctx, exprStr)
		if err != nil {
			return Request{}, err
		}
		url = strings.ReplaceAll(url, ":"+name, fmt.Sprint(val))
	}

	headers := make(map[string]string, len(p.Exec.Headers))
	for k, v := range p.Exec.Headers {
		resolved, err := resolveTemplateValue(ctx, v)
		if err != nil {
			return Request{}, err
		}
		headers[k] = fmt.Sprint(resolved)
	}

	body := make(map[string]any, len(p.Exec.Body))
	for k, v := range p.Exec.Body {
		resolved, err := resolveTemplateValue(ctx, v)
		if err != nil {
			return Request{}, err
		}
		body[k] = resolved
	}

	return Request{Method: p.Exec.Method, URL: url, Headers: headers, Body: body}, nil
}

func resolveTemplateValue(ctx expr.Context, raw string) (any, error) {
	if strings.HasPrefix(raw, "$") {
		return expr.Eval(ctx, raw)
	}
	return raw, nil
}
