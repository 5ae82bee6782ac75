package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/engine"
	"github.com/spigell/rfp-evaluator/internal/matching"
)

const (
	PromptBack    = "back"
	PromptSummary = "Print summary"
	PromptDump    = "Dump envelope to file"
)

var matchCmd = &cobra.Command{
	Use:   "match [file]",
	Short: "Match a scope of work against the capability catalog",
	Long:  "Reads the scope of work from the given file, or from stdin when no file is given, and prints the result envelope as JSON.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runMatch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("analysis-id", "a", "", "analysis id (default is a random uuid)")
	matchCmd.Flags().StringP("language", "l", "", "document language hint passed to the model")
	matchCmd.Flags().StringP("user", "u", "", "user charged against the daily analysis allowance")
	matchCmd.Flags().BoolP("interactive", "i", false, "browse the matches interactively")
}

func runMatch(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	logger, config := setup()

	logger.Info("starting the rfp-evaluator", zap.String("version", version), zap.String("command", "match"))

	text, err := readInput(args)
	if err != nil {
		logger.Fatal("reading scope of work", zap.Error(err))
	}

	analysisID, _ := cmd.Flags().GetString("analysis-id")
	if strings.TrimSpace(analysisID) == "" {
		analysisID = uuid.NewString()
	}
	language, _ := cmd.Flags().GetString("language")
	user, _ := cmd.Flags().GetString("user")

	svc := newService(ctx, config, logger)
	defer svc.Release(analysisID)

	env := svc.MatchScope(ctx, engine.Caller{ID: "cli", UserID: user}, engine.MatchRequest{
		AnalysisID:  analysisID,
		ScopeOfWork: text,
		Language:    language,
	})

	if env.Error != nil {
		_ = printJSON(env)
		logger.Fatal("matching failed", zap.String("code", string(env.Error.Code)), zap.String("message", env.Error.Message))
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := browseMatches(env, logger); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	if err := printJSON(env); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
}

func readInput(args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func matchLabel(i int, m matching.ScopeMatch) string {
	service := "-"
	if m.MatchedService != nil {
		service = *m.MatchedService
	}
	return fmt.Sprintf("%d [%s %.2f %s] %s -> %s", i+1, m.MatchClass, m.Confidence, m.Source, m.ScopeItem, service)
}

// browseMatches lets the user walk through the matches one by one.
func browseMatches(env engine.Envelope, logger *zap.Logger) error {
	data, ok := env.Data.(engine.MatchResult)
	if !ok {
		return fmt.Errorf("unexpected envelope data %T", env.Data)
	}

	for {
		items := make([]string, 0, len(data.Matches)+3)
		for i, m := range data.Matches {
			items = append(items, matchLabel(i, m))
		}
		items = append(items, PromptSummary, PromptDump, PromptBack)

		matchPrompt := promptui.Select{
			Label: "Choose a scope item and press ENTER",
			Items: items,
			Size:  15,
		}

		idx, selected, err := matchPrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptBack:
			return nil
		case PromptSummary:
			logger.Info("scope summary",
				zap.String("taxonomy_version", data.TaxonomyVersion),
				zap.Int("items", len(data.ScopeItems)),
				zap.Float64("agency_percentage", data.AgencyServicePercentage),
				zap.Float64("outsourcing_percentage", data.OutsourcingPercentage),
				zap.Strings("warnings", env.Warnings),
			)
		case PromptDump:
			filename, err := dumpToTmpFile(env)
			if err != nil {
				return fmt.Errorf("dump results to file: %w", err)
			}
			logger.Info("dumping result to file", zap.String("filename", filename))
		default:
			m := data.Matches[idx]
			fields := []zap.Field{
				zap.String("scope_item", m.ScopeItem),
				zap.String("class", string(m.MatchClass)),
				zap.Float64("confidence", m.Confidence),
				zap.String("source", string(m.Source)),
			}
			if m.MatchedService != nil {
				fields = append(fields, zap.String("service", *m.MatchedService))
			}
			if m.Reasoning != nil {
				fields = append(fields, zap.String("reasoning", *m.Reasoning))
			}
			logger.Info("scope match", fields...)
		}
	}
}
