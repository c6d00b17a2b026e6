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

package fragment

import "encoding/json"

// Encode serializes a fragment to its wire JSON form.
func Encode(f Fragment) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses a fragment from its wire JSON form.
func Decode(data []byte) (Fragment, error) {
	var f Fragment
	err := json.Unmarshal(data, &f)
	return f, err
}

// EncodeBatch serializes a fragment slice, used as ScopeState/ScopeSync
// payload bodies.
func EncodeBatch(fs []Fragment) ([]byte, error) {
	return json.Marshal(fs)
}

// DecodeBatch parses a fragment slice.
func DecodeBatch(data []byte) ([]Fragment, error) {
	var fs []Fragment
	err := json.Unmarshal(data, &fs)
	return fs, err
}
