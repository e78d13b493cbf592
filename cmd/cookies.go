package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tubescribe/internal/ytdlp"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Check the cookies file used for authenticated tool runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFromContext(cmd.Context())

		path := a.Config.YtDlp.CookiesFile
		report := ytdlp.ValidateCookiesFile(path)

		fmt.Printf("cookies file: %s\n", path)
		check("file exists", report.Exists)
		check("netscape format", report.NetscapeFormat)
		check("youtube.com domain entries", report.HasDomain)
		check("authentication cookies", report.HasAuth)

		if report.Valid() {
			color.Green("cookies will be used for tool invocations")
		} else {
			color.Yellow("cookies will NOT be used; tool runs unauthenticated")
		}
		return nil
	},
}

func check(label string, ok bool) {
	if ok {
		fmt.Printf("  %s %s\n", color.GreenString("ok"), label)
	} else {
		fmt.Printf("  %s %s\n", color.RedString("--"), label)
	}
}

func init() {
	rootCmd.AddCommand(cookiesCmd)
}
