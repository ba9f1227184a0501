package testutil

import "testing"

// When names a scenario subtest so table-free handler tests read as cases.
func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}
