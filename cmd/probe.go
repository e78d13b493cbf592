package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"tubescribe/internal/media"
)

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Show subject metadata and available caption tracks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFromContext(cmd.Context())

		info, err := a.Service.Info(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		color.New(color.Bold).Printf("%s\n", info.Title)
		fmt.Printf("id: %s  channel: %s  duration: %.0fs  language: %s\n\n",
			info.ID, info.Channel, info.Duration, info.Language)

		rows := trackRows(info.Subtitles, "manual")
		rows = append(rows, trackRows(info.AutomaticCaptions, "auto")...)
		sort.Slice(rows, func(i, j int) bool {
			if rows[i][0] != rows[j][0] {
				return rows[i][0] < rows[j][0]
			}
			return rows[i][1] < rows[j][1]
		})

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Language", "Origin", "Formats"})
		for _, row := range rows {
			table.Append(row)
		}
		table.Render()
		return nil
	},
}

func trackRows(tracks map[string][]media.Track, origin string) [][]string {
	var rows [][]string
	for lang, variants := range tracks {
		exts := make([]string, 0, len(variants))
		for _, t := range variants {
			exts = append(exts, t.Ext)
		}
		rows = append(rows, []string{lang, origin, strings.Join(exts, ", ")})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
