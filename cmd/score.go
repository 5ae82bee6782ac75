package cmd

import (
	"bytes"
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/engine"
)

var scoreCmd = &cobra.Command{
	Use:   "score [file]",
	Short: "Calculate the financial score of an RFP",
	Long:  "Reads a JSON payload with extractedRfp, scopeAnalysis and clientResearch from the given file, or from stdin, and prints the result envelope.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runScore(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringP("user", "u", "", "user id recorded with the request")
}

func runScore(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	logger, config := setup()

	logger.Info("starting the rfp-evaluator", zap.String("version", version), zap.String("command", "score"))

	text, err := readInput(args)
	if err != nil {
		logger.Fatal("reading payload", zap.Error(err))
	}

	payload, err := engine.ReadPayload(bytes.NewBufferString(text))
	if err != nil {
		logger.Fatal("parsing payload", zap.Error(err))
	}

	in, err := engine.DecodeScoreRequest(payload)
	if err != nil {
		logger.Fatal("decoding payload", zap.Error(err))
	}

	user, _ := cmd.Flags().GetString("user")

	svc := newService(ctx, config, logger)
	defer svc.Release(in.AnalysisID)

	env := svc.CalculateScore(ctx, engine.Caller{ID: "cli", UserID: user}, in)
	if err := printJSON(env); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
	if env.Error != nil {
		logger.Fatal("scoring failed", zap.String("code", string(env.Error.Code)), zap.String("message", env.Error.Message))
	}
}
