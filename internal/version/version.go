// Package version reports the build version of the workshop.
package version

// Version is overridden at build time with:
//
//	go build -ldflags "-X github.com/AaronLay10/RepairWorkshop/internal/version.Version=x.y.z"
var Version = "0.1.0"
