package svcinstall

// Version is the current version of the svcinstall library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Managers lists the native service managers this build can drive
	Managers []string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Managers: []string{ManagerSystemd, ManagerLaunchd, ManagerSchtasks},
	}
}
