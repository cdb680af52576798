package core

// Version is the application version, set at build time via ldflags.
//
//	go build -ldflags "-X github.com/omeshapasan2/CatVTON-Runpod-Serverless/core.Version=v1.0.0" .
//
// If not set at build time, defaults to "dev".
var Version = "dev"

// GitCommit is the git commit hash, set at build time via ldflags.
var GitCommit = "unknown"

// GetVersionInfo returns a formatted version string, e.g. "v1.0.0 (commit abc1234)".
func GetVersionInfo() string {
	return Version + " (commit " + GitCommit + ")"
}
