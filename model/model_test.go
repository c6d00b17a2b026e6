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

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeclareAndFreezeRecursiveRefs(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Declare("Shape", "", func(b *Builder) {
		b.Scalar("x", KindNumber).Scalar("y", KindNumber)
		b.Ref("canvas", "Canvas") // forward reference, Canvas not declared yet
	})
	require.NoError(t, err)

	_, err = reg.Declare("Canvas", "", func(b *Builder) {
		b.Scalar("name", KindString)
		b.RefCollection("shapes", "Shape")
	})
	require.NoError(t, err)

	require.NoError(t, reg.Freeze())

	shape := reg.MustType("Shape")
	canvasProp, ok := shape.Property("canvas")
	require.True(t, ok)
	require.NotNil(t, canvasProp.Target())
	require.Equal(t, "Canvas", canvasProp.Target().Name())
}

func TestFreezeFailsOnUnresolvedRef(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *Builder) {
		b.Ref("canvas", "Canvas")
	})
	require.NoError(t, err)

	err = reg.Freeze()
	require.Error(t, err)
}

func TestDuplicatePropertyIsFatal(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *Builder) {
		b.Scalar("x", KindNumber)
		b.Scalar("x", KindNumber)
	})
	require.Error(t, err)
}

func TestInheritanceAddsProperties(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *Builder) {
		b.Scalar("x", KindNumber)
	})
	require.NoError(t, err)

	_, err = reg.Declare("Circle", "Shape", func(b *Builder) {
		b.Scalar("radius", KindNumber)
	})
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())

	circle := reg.MustType("Circle")
	require.True(t, circle.IsOrDescendsFrom("Shape"))
	_, ok := circle.Property("x")
	require.True(t, ok)
	_, ok = circle.Property("radius")
	require.True(t, ok)
}

func TestEnumTypeFromSequence(t *testing.T) {
	e, err := NewEnumTypeFromSequence("Color", []string{"red", "green", "blue"})
	require.NoError(t, err)

	v, ok := e.Value("green")
	require.True(t, ok)
	require.Equal(t, int64(1), v)

	n, ok := e.NameOf(2)
	require.True(t, ok)
	require.Equal(t, "blue", n)
}

func TestEnumDuplicateValueIsFatal(t *testing.T) {
	_, err := NewEnumType("Bad", map[string]int64{"a": 1, "b": 1})
	require.Error(t, err)
}

func TestObjectAttachmentLifecycle(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Declare("Shape", "", func(b *Builder) { b.Scalar("x", KindNumber) })
	require.NoError(t, err)
	require.NoError(t, reg.Freeze())

	shape := reg.MustType("Shape")
	obj := shape.NewInstance("u1")
	require.False(t, obj.Attached())

	obj.SetScope(fakeScope{"s1"})
	require.True(t, obj.Attached())

	obj.SetScope(nil)
	require.False(t, obj.Attached())
}

type fakeScope struct{ uuid string }

func (f fakeScope) ScopeUUID() string { return f.uuid }
