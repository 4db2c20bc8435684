// Package misc keeps build time information about the program.
package misc

// set with -ldflags "-X pdx/misc.version=... -X pdx/misc.githash=..."
var (
	version = "dev"
	githash = "unknown"
)

const appName = "pdx"

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return githash
}

func GetAppName() string {
	return appName
}
