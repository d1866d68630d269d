//go:build gcroot_release

package zeal

// EnvVar is the environment variable read by FromEnv.
const EnvVar = "GCROOT_ZEAL"

// FromEnv is disabled in release builds.
func FromEnv() (Settings, error) {
	return Settings{}, nil
}
