// Package testutil provides shared assertion helpers for the venue-sim
// test packages.
package testutil

import (
	"math"
	"testing"
)

// AssertNear fails the test when got is not within eps of want.
func AssertNear(t *testing.T, want, got, eps float64, context string) {
	t.Helper()
	if math.Abs(want-got) > eps {
		t.Errorf("%s: got %f, want %f (±%f)", context, got, want, eps)
	}
}

// AssertSameFloats fails the test when two float slices differ anywhere by
// more than eps.
func AssertSameFloats(t *testing.T, want, got []float64, eps float64, context string) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("%s: length mismatch: got %d, want %d", context, len(got), len(want))
	}
	for i := range want {
		if math.Abs(want[i]-got[i]) > eps {
			t.Errorf("%s: index %d: got %f, want %f", context, i, got[i], want[i])
		}
	}
}
