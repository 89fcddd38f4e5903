package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BlacK-CHi/tincanOpener/internal/version"
)

// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show detailed version information including build time and git commit.

Example:
  tincanopener version`,
	Run: runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "tincanopener %s\n", version.GetVersion())
	fmt.Fprintf(out, "Platform: %s\n", version.GetPlatform())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "캔따개 ─ WebSocket-Socket.IO 프록시")
	fmt.Fprintln(out)
}
