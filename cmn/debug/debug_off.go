//go:build !debug

package debug

const Enabled = false

// Assert is a no-op in non-debug builds.
func Assert(cond bool, args ...any) {}

// Assertf is a no-op in non-debug builds.
func Assertf(cond bool, format string, args ...any) {}

// AssertNoErr is a no-op in non-debug builds.
func AssertNoErr(err error) {}
