// Package version holds build-time version info injected via ldflags.
//
// Set at compile time:
//
//	go build -ldflags "-X github.com/NicolasHaas/peermatch/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/peermatch/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/peermatch/pkg/version.date=2026-01-01"
//
// Without ldflags, the VCS stamp the go command embeds is used when present.
package version

import (
	"runtime/debug"
	"sync"
)

// Populated by -ldflags "-X ...".
var (
	tag    = ""        // git tag (e.g. "v0.2.0"), empty if not on a tag
	commit = "unknown" // short git commit SHA
	date   = "unknown" // build date (ISO 8601)
)

var fromBuildInfo = sync.OnceFunc(func() {
	if commit != "unknown" {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				commit = s.Value[:7]
			} else if s.Value != "" {
				commit = s.Value
			}
		case "vcs.time":
			if date == "unknown" && s.Value != "" {
				date = s.Value
			}
		}
	}
})

// Info is the build information reported by /version.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the build information.
func Get() Info {
	return Info{Version: String(), Commit: Commit(), Date: Date()}
}

// String returns a human-readable version string: the tag, else the
// commit, else "dev".
func String() string {
	fromBuildInfo()
	if tag != "" {
		return tag
	}
	if commit != "unknown" {
		return commit
	}
	return "dev"
}

// Full returns "tag (commit) built date" or a sensible fallback.
func Full() string {
	fromBuildInfo()
	switch {
	case tag != "":
		return tag + " (" + commit + ") built " + date
	case commit != "unknown":
		return commit + " built " + date
	}
	return "dev"
}

// Commit returns the short commit SHA.
func Commit() string {
	fromBuildInfo()
	return commit
}

// Date returns the build date.
func Date() string {
	fromBuildInfo()
	return date
}
