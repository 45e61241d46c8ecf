// Package version carries the build metadata stamped into the linkgate
// binary with -ldflags, plus the per-process identity that every log record
// and telemetry resource is tagged with.
//
//	go build -ldflags "-X linkgate/internal/version.Version=v1.4.0 \
//	  -X linkgate/internal/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X linkgate/internal/version.BuildDate=$(date -u +%FT%TZ)"
package version

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

var (
	Version   = "unknown"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info identifies one running gate process.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var current = sync.OnceValue(func() Info {
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		InstanceID: uuid.NewString(),
		Hostname:   hostname(),
	}
})

// GetInfo returns the process identity. The instance ID is generated on the
// first call and stays fixed for the life of the process.
func GetInfo() Info {
	return current()
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("linkgate version %s (commit: %s, built: %s, %s)", i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}

// UserAgent identifies outbound requests made by the gate.
func (i Info) UserAgent() string {
	return "linkgate/" + i.Version
}

// LogAttrs returns the attributes attached to every log record. The hostname
// is left out; the instance ID already distinguishes replicas.
func (i Info) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("version", i.Version),
		slog.String("git_commit", i.GitCommit),
		slog.String("go_version", i.GoVersion),
		slog.String("instance_id", i.InstanceID),
	}
}
