package version

import "fmt"

// Version values are set at build time using -ldflags.
var Version = "dev"
var Built = ""
var GitCommit = ""

type VersionInfo struct {
	Version   string `json:"version"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// Line renders the version for --version output.
func Line(command string) string {
	info := GetVersionInfo()
	if info.Version == "" || info.Version == "dev" {
		return command + " dev"
	}
	line := fmt.Sprintf("%s version %s", command, info.Version)
	if info.GitCommit != "" {
		line += fmt.Sprintf(" (%s)", info.GitCommit)
	}
	return line
}
