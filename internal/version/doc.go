// Package version holds the build metadata of the alarm controller.
//
// Version, Commit and BuildTime are set with -ldflags -X at release time.
package version
