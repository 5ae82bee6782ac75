package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Print the capability catalog with its fingerprint",
	Run: func(_ *cobra.Command, _ []string) {
		logger, config := setup()

		entries, err := newLoader(config, logger).Load()
		if err != nil {
			logger.Fatal("loading taxonomy", zap.Error(err))
		}

		out := struct {
			Version string           `json:"version"`
			Count   int              `json:"count"`
			Entries []taxonomy.Entry `json:"entries"`
		}{
			Version: taxonomy.Fingerprint(entries),
			Count:   len(entries),
			Entries: entries,
		}
		if err := printJSON(out); err != nil {
			logger.Fatal("printing taxonomy", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
}
