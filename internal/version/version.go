// Package version describes the running consulate build: the version stamped
// at link time or recorded by the Go toolchain, and the User-Agent the HTTP
// transport sends to the agent.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const (
	defaultModule = "pkt.systems/consulate"
	unknown       = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/consulate/internal/version.buildVersion=...".
var buildVersion = ""

// Info is what the binary knows about its own build.
type Info struct {
	Module    string    `json:"module"`
	Version   string    `json:"version"`
	Revision  string    `json:"revision,omitempty"`
	Time      time.Time `json:"time,omitzero"`
	Modified  bool      `json:"modified,omitempty"`
	GoVersion string    `json:"go"`
	Platform  string    `json:"platform"`
}

var readBuild = sync.OnceValue(func() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
})

// Get assembles Info for this process. The link-time version wins over
// anything the toolchain recorded.
func Get() Info {
	info := fromBuildInfo(readBuild())
	if v := strings.TrimSpace(buildVersion); v != "" {
		info.Version = v
	}
	return info
}

// Current returns the best available version string.
func Current() string { return Get().Version }

// Module returns the main module path.
func Module() string { return Get().Module }

// UserAgent is the User-Agent header value sent with API requests, for
// example "consulate/1.2.3 (go1.25.0; linux/amd64)".
func UserAgent() string {
	info := Get()
	return "consulate/" + strings.TrimPrefix(info.Version, "v") + " (" + info.GoVersion + "; " + info.Platform + ")"
}

func fromBuildInfo(bi *debug.BuildInfo) Info {
	info := Info{
		Module:    defaultModule,
		Version:   unknown,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi == nil {
		return info
	}
	if path := strings.TrimSpace(bi.Main.Path); path != "" {
		info.Module = path
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				info.Time = t.UTC()
			}
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}
	switch v := strings.TrimSpace(bi.Main.Version); {
	case v != "" && v != "(devel)":
		info.Version = v
	case info.Revision != "" && !info.Time.IsZero():
		info.Version = info.pseudo()
	}
	return info
}

// pseudo formats a module pseudo-version from the VCS stamp, marking dirty
// trees.
func (i Info) pseudo() string {
	rev := i.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	v := "v0.0.0-" + i.Time.Format("20060102150405") + "-" + rev
	if i.Modified {
		v += "+dirty"
	}
	return v
}
