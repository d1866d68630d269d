//go:build !gcroot_release

package root

// checks enables handle liveness and value validity assertions.
const checks = true
