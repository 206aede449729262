// Package misc holds build time program identity.
package misc

import (
	"runtime/debug"
)

// set by linker: -X folio/misc.version=... -X folio/misc.gitHash=...
var (
	version = "dev"
	gitHash = ""
	appName = "folio"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit hash, falling back to VCS information embedded by
// go build when linker did not set it.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
