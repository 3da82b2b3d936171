// Copyright 2015 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package jaeger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTagCoercion(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		kind TagKind
	}{
		{"string", "hello", TagString},
		{"bool", true, TagBool},
		{"int", 42, TagInt64},
		{"int64", int64(42), TagInt64},
		{"uint", uint(7), TagUint64},
		{"float64", 3.14, TagFloat64},
	}
	for _, c := range cases {
		tag := NewTag("key", c.in)
		assert.Equal(t, c.kind, tag.Kind, c.name)
	}
}

func TestNewTagFallsBackToErrorString(t *testing.T) {
	tag := NewTag("err", errors.New("boom"))
	assert.Equal(t, TagString, tag.Kind)
	assert.Equal(t, "boom", tag.VString)
}

func TestNewTagFallsBackToSprintf(t *testing.T) {
	tag := NewTag("val", struct{ A int }{A: 1})
	assert.Equal(t, TagString, tag.Kind)
	assert.Contains(t, tag.VString, "1")
}

func TestTagValueRoundTrip(t *testing.T) {
	assert.Equal(t, "x", NewTag("k", "x").Value())
	assert.Equal(t, int64(5), NewTag("k", 5).Value())
	assert.Equal(t, true, NewTag("k", true).Value())
}
