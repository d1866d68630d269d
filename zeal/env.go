//go:build !gcroot_release

package zeal

import "os"

// EnvVar is the environment variable read by FromEnv.
const EnvVar = "GCROOT_ZEAL"

// FromEnv parses the setting in GCROOT_ZEAL. An unset variable is disabled.
func FromEnv() (Settings, error) {
	return Parse(os.Getenv(EnvVar))
}
