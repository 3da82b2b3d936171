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

import "sync"

// BaggageRestrictionManager caps baggage key/value sizes per operation.
// The default Tracer has none installed: SetBaggageItem then never calls
// Apply, counts every write as baggage-update{result=ok}, and never emits
// baggage-truncate or baggage-update{result=err}.
type BaggageRestrictionManager struct {
	mu           sync.RWMutex
	maxValueLen  int
	restrictions map[string]bool // operation -> baggage allowed at all
}

// NewBaggageRestrictionManager builds a manager that truncates baggage
// values longer than maxValueLen. A maxValueLen of 0 means unrestricted.
func NewBaggageRestrictionManager(maxValueLen int) *BaggageRestrictionManager {
	return &BaggageRestrictionManager{maxValueLen: maxValueLen}
}

// Restrict disables baggage entirely for a given operation name.
func (m *BaggageRestrictionManager) Restrict(operationName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restrictions == nil {
		m.restrictions = make(map[string]bool)
	}
	m.restrictions[operationName] = true
}

// Apply returns the (possibly truncated) value, whether the write is
// permitted at all for the given operation, and whether truncation
// occurred.
func (m *BaggageRestrictionManager) Apply(operationName, _key, value string) (result string, allowed bool, truncated bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.restrictions != nil && m.restrictions[operationName] {
		return "", false, false
	}
	if m.maxValueLen > 0 && len(value) > m.maxValueLen {
		return value[:m.maxValueLen], true, true
	}
	return value, true, false
}
