package config

// Release builds of sqs-inspect stamp these at link time so the
// "sqs-inspect starting" log line identifies the binary that drained a queue:
//
//	go build -o bin/sqs-inspect \
//	    -ldflags "-X sqsinspect/internal/config.version=$(git describe --tags) \
//	    -X sqsinspect/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X sqsinspect/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/sqs-inspect
//
// go run and go test leave the placeholders below in place.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the stamped version, commit and build time. The loader
// sets Config.Build from it; no environment variable can override these.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
