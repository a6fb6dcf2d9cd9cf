// Package testutil provides shared test helpers and point-cloud fixtures.
package testutil

import (
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertNear fails the test when |got-want| exceeds tol.
func AssertNear(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	d := got - want
	if d < -tol || d > tol {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, tol)
	}
}
