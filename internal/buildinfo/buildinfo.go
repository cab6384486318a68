// Package buildinfo holds values stamped at link time:
//
//	go build -ldflags "-X github.com/varsilias/carmatch/internal/buildinfo.Version=v1.2.3"
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	BuiltAt = "unknown"
)
