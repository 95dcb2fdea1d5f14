package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if versionShort {
			cmd.Println(version)
			return
		}
		info, _ := debug.ReadBuildInfo()
		cmd.Println(versionLine(version, info))
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
	rootCmd.AddCommand(versionCmd)
}

// versionLine formats v with the Go version and VCS revision from info,
// when the binary carries them.
func versionLine(v string, info *debug.BuildInfo) string {
	line := "sercha-sync " + v
	if info == nil {
		return line
	}

	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if revision != "" && dirty {
		revision += "-dirty"
	}

	switch {
	case revision != "":
		return fmt.Sprintf("%s (%s, %s)", line, revision, info.GoVersion)
	case info.GoVersion != "":
		return fmt.Sprintf("%s (%s)", line, info.GoVersion)
	}
	return line
}
