package version

// Version is the current release of toolscout.
// It is overridden at build time via -ldflags for tagged releases.
var Version = "0.3.0-dev"

// GetVersion returns the version string reported by the server
// metadata endpoint and the CLI.
func GetVersion() string {
	return Version
}
