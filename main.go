package main

import (
	"runtime/debug"

	"github.com/marcus/plugsync/cmd"
)

// Version is set by release builds with -ldflags "-X main.Version=v1.2.3".
var Version = ""

// buildVersion falls back to the module version recorded by "go install",
// then to the VCS revision, then to "dev".
func buildVersion() string {
	if Version != "" {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return "dev+" + s.Value[:7]
		}
	}
	return "dev"
}

func main() {
	cmd.SetVersion(buildVersion())
	cmd.Execute()
}
