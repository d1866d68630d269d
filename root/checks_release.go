//go:build gcroot_release

package root

const checks = false
