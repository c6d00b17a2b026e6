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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/model"
)

func TestRoundTripFragment(t *testing.T) {
	f := Fragment{
		Type:      Change,
		UUID:      "11111111-1111-1111-1111-111111111111",
		ClassName: "Canvas",
		Properties: map[string]any{
			"name":   "demo",
			"shapes": []any{"u1", "u2"},
		},
	}
	data, err := Encode(f)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, f.Type, got.Type)
	require.Equal(t, f.UUID, got.UUID)
	require.Equal(t, f.ClassName, got.ClassName)
	require.Equal(t, f.Properties["name"], got.Properties["name"])
}

func buildCanvasShapeRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *model.Builder) {
		b.Scalar("x", model.KindNumber)
		b.Scalar("y", model.KindNumber)
	})
	require.NoError(t, err)
	_, err = reg.Declare("Canvas", "", func(b *model.Builder) {
		b.Scalar("name", model.KindString)
		b.RefCollection("shapes", "Shape")
	})
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())
	return reg
}

func TestValidateUnknownPropertyRejected(t *testing.T) {
	reg := buildCanvasShapeRegistry(t)
	canvas := reg.MustType("Canvas")

	_, err := Validate(reg, canvas, Fragment{
		Type:       Change,
		UUID:       "u0",
		Properties: map[string]any{"bogus": 1},
	})
	require.Error(t, err)
}

func TestValidateCollectionWithNonSequenceRejected(t *testing.T) {
	reg := buildCanvasShapeRegistry(t)
	canvas := reg.MustType("Canvas")

	_, err := Validate(reg, canvas, Fragment{
		Type:       Change,
		UUID:       "u0",
		Properties: map[string]any{"shapes": "not-a-sequence"},
	})
	require.Error(t, err)
}

func TestValidateScalarWrongKindRejected(t *testing.T) {
	reg := buildCanvasShapeRegistry(t)
	canvas := reg.MustType("Canvas")

	_, err := Validate(reg, canvas, Fragment{
		Type:       Change,
		UUID:       "u0",
		Properties: map[string]any{"name": 123},
	})
	require.Error(t, err)
}

func TestValidateAddWithCls(t *testing.T) {
	reg := model.NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *model.Builder) { b.Scalar("x", model.KindNumber) })
	require.NoError(t, err)
	_, err = reg.Declare("Circle", "Shape", func(b *model.Builder) { b.Scalar("radius", model.KindNumber) })
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())

	shape := reg.MustType("Shape")
	resolved, err := Validate(reg, shape, Fragment{
		Type:       Add,
		UUID:       "u1",
		ClassName:  "Circle",
		Properties: map[string]any{"radius": 5.0},
	})
	require.NoError(t, err)
	require.Equal(t, "Circle", resolved.Name())
}

func TestValidateAddWithUnrelatedClsRejected(t *testing.T) {
	reg := model.NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *model.Builder) {})
	require.NoError(t, err)
	_, err = reg.Declare("Other", "", func(b *model.Builder) {})
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())

	shape := reg.MustType("Shape")
	_, err = Validate(reg, shape, Fragment{Type: Add, UUID: "u1", ClassName: "Other"})
	require.Error(t, err)
}

func TestLateBoundFragmentRequiresUUIDBeforeProperties(t *testing.T) {
	lb := NewLateBound(Change)
	err := lb.SetPropertiesOrThrow(map[string]any{"x": 1})
	require.Error(t, err)

	lb.BindObjectUUID("u1")
	require.NoError(t, lb.SetPropertiesOrThrow(map[string]any{"x": 1}))

	f, err := lb.Resolved()
	require.NoError(t, err)
	require.Equal(t, "u1", f.UUID)
}
