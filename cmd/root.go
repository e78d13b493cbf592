package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tubescribe/internal/app"
	"tubescribe/internal/config"
)

type contextKey string

const appKey contextKey = "app"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tubescribe",
	Short: "Video transcript retrieval and normalization engine",
	Long: `tubescribe retrieves video transcripts through a chain of fallbacks
(embedded captions, a caption feed service, tool-fetched auto-subs, and
speech-to-text) and normalizes them with a two-pass AI pipeline.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("initialize app: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a := appFromContext(cmd.Context()); a != nil {
			a.Close()
		}
	},
}

func appFromContext(ctx context.Context) *app.App {
	a, _ := ctx.Value(appKey).(*app.App)
	return a
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
