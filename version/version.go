package version

// Values set by the build, generated using the github.com/karlmutch/duat tools

var (
	// GitHash is the git commit the server was built from
	GitHash = "unknown"
	// BuildTime is the time at which the server was built
	BuildTime = "unknown"
)
