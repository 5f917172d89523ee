package cli

import (
	"fmt"
	"runtime"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/thesyncim/avplay"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("short", "s", false, "Print only the version")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and provider information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if lo.Must(cmd.Flags().GetBool("short")) {
			fmt.Fprintln(out, Version)
			return
		}

		fmt.Fprintf(out, "%s %s\n\n", headingStyle.Render("avplay"), Version)
		fmt.Fprintf(out, "  %s  %s/%s %s\n", faintStyle.Render("Platform"), runtime.GOOS, runtime.GOARCH, runtime.Version())
		ffmpeg := avplay.FFmpegVersion()
		if ffmpeg == "" {
			ffmpeg = "unavailable"
		}
		fmt.Fprintf(out, "  %s    %s\n\n", faintStyle.Render("FFmpeg"), ffmpeg)

		fmt.Fprintln(out, headingStyle.Render("Providers"))
		for _, p := range avplay.Providers() {
			status := "unavailable"
			if p.Available() {
				status = "available"
			}
			fmt.Fprintf(out, "  %-8s %-11s %s\n", p, status, faintStyle.Render(p.License().String()))
		}
		fmt.Fprintf(out, "\n%s %v\n", faintStyle.Render("Schemes:"), avplay.RegisteredSchemes())
	},
}
