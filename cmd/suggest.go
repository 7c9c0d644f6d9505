package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/feedback-cli/internal/suggest"
)

var (
	suggestTop int
	suggestOut string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Mine keyword candidates from manual-review texts",
	Long:  "Counts unigram and bigram frequencies across texts that fell through to Manual Review under the current taxonomy, so frequent themes can be promoted into category keywords.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		topK := suggestTop
		if topK <= 0 {
			topK = cfg.Suggest.TopK
		}
		out := suggestOut
		if out == "" {
			out = cfg.Suggest.OutputPath
		}

		texts, err := env.Store.ManualReviewTexts(ctx, env.Engine.Version(), cfg.Suggest.MaxRecords)
		if err != nil {
			return err
		}
		if len(texts) == 0 {
			fmt.Println("no manual-review texts for the current taxonomy version")
			return nil
		}

		miner := suggest.New(topK)
		suggestions := miner.Mine(texts)

		if err := suggest.WriteReport(out, suggestions); err != nil {
			return err
		}

		zap.L().Info("suggestions written",
			zap.Int("texts", len(texts)),
			zap.Int("suggestions", len(suggestions)),
			zap.String("path", out),
		)
		fmt.Printf("mined %d texts, wrote top %d n-grams to %s\n", len(texts), len(suggestions), out)
		for i, s := range suggestions {
			if i >= 10 {
				break
			}
			fmt.Printf("  %6d  %s\n", s.Frequency, s.NGram)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVar(&suggestTop, "top", 0, "number of n-grams to report (default from config)")
	suggestCmd.Flags().StringVar(&suggestOut, "out", "", "report output path (default from config)")
	rootCmd.AddCommand(suggestCmd)
}
