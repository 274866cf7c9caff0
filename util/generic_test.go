// util/generic_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"slices"
	"testing"
)

func TestMapSlice(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := MapSlice[int, float32](a, func(i int) float32 { return 2 * float32(i) })
	if len(a) != len(b) {
		t.Errorf("lengths mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if float32(2*a[i]) != b[i] {
			t.Errorf("value %d mismatch %f vs %f", i, float32(2*a[i]), b[i])
		}
	}
}

func TestFilterSlice(t *testing.T) {
	a := []int{1, 2, 3, 4, 5}
	b := FilterSlice(a, func(i int) bool { return i%2 == 0 })
	if !slices.Equal(b, []int{2, 4}) {
		t.Errorf("filter evens: got %v", b)
	}
	if got := FilterSlice(a, func(i int) bool { return false }); len(got) != 0 {
		t.Errorf("filter none: got %v", got)
	}
}

func TestSortedMapKeys(t *testing.T) {
	m := map[string]int{"c": 3, "a": 1, "b": 2}
	if got := SortedMapKeys(m); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("got %v", got)
	}
}

func TestDuplicateMap(t *testing.T) {
	m := map[string]int{"a": 1, "b": 2}
	d := DuplicateMap(m)
	d["a"] = 10
	if m["a"] != 1 {
		t.Errorf("duplicate aliases the original")
	}
	if len(d) != len(m) {
		t.Errorf("lengths mismatch: %d vs %d", len(d), len(m))
	}
}

func TestMapContains(t *testing.T) {
	m := map[string]int{"a": 1, "b": 2}
	if !MapContains(m, func(k string, v int) bool { return v == 2 }) {
		t.Errorf("expected match for v == 2")
	}
	if MapContains(m, func(k string, v int) bool { return k == "z" }) {
		t.Errorf("unexpected match for k == z")
	}
}
