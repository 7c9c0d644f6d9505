package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/feedback-cli/internal/model"
	"github.com/sells-group/feedback-cli/internal/orchestrator"
)

var (
	categorizeMode      string
	categorizeBatchSize int
	categorizeLimit     int
	categorizeYes       bool
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Classify stored survey responses",
	Long: `Runs the classifier over stored survey responses.

Modes:
  explore      classify a random sample, report results, persist nothing
  process-new  classify responses without a result for the current taxonomy version
  process-all  classify every response, overwriting stored results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode, ok := model.ParseRunMode(categorizeMode)
		if !ok {
			return eris.Errorf("invalid mode %q (want explore, process-new, or process-all)", categorizeMode)
		}

		// process-all overwrites every stored result, so ask first.
		if mode == model.RunModeProcessAll && !categorizeYes {
			if !confirm("Re-classify ALL responses, overwriting stored results? [y/N] ") {
				fmt.Println("aborted")
				return nil
			}
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		batchCfg := cfg.Batch
		if categorizeBatchSize > 0 {
			batchCfg.Size = categorizeBatchSize
		}

		orch := orchestrator.New(env.Store, env.Engine, batchCfg)
		summary, err := orch.Run(ctx, orchestrator.Options{
			Mode:  mode,
			Limit: categorizeLimit,
		})
		if summary != nil {
			printSummary(summary)
		}
		return err
	},
}

func init() {
	categorizeCmd.Flags().StringVar(&categorizeMode, "mode", "process-new", "run mode: explore, process-new, or process-all")
	categorizeCmd.Flags().IntVar(&categorizeBatchSize, "batch-size", 0, "records per chunk (default from config)")
	categorizeCmd.Flags().IntVar(&categorizeLimit, "limit", 0, "explore sample size (default from config)")
	categorizeCmd.Flags().BoolVar(&categorizeYes, "yes", false, "skip the process-all confirmation prompt")
	rootCmd.AddCommand(categorizeCmd)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printSummary(s *model.RunSummary) {
	fmt.Println()
	fmt.Printf("run %s (%s)\n", s.RunID, s.Mode)
	fmt.Printf("  taxonomy version: %s\n", s.TaxonomyVersion)
	fmt.Printf("  scanned:          %d\n", s.Scanned)
	fmt.Printf("  classified:       %d\n", s.Classified)
	fmt.Printf("  noise:            %d\n", s.Noise)
	fmt.Printf("  manual review:    %d\n", s.LowConfidence)
	fmt.Printf("  record errors:    %d\n", s.RecordErrors)
	fmt.Printf("  persisted:        %d\n", s.Persisted)
	if s.Partial() {
		fmt.Printf("  FAILED CHUNKS:    %d (re-run with --mode process-new to retry)\n", s.FailedChunks)
	}
	fmt.Printf("  elapsed:          %s\n", s.Elapsed().Round(time.Millisecond))

	if len(s.Categories) > 0 {
		fmt.Println("\n  category breakdown:")
		names := make([]string, 0, len(s.Categories))
		for name := range s.Categories {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if s.Categories[names[i]] != s.Categories[names[j]] {
				return s.Categories[names[i]] > s.Categories[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Printf("    %6d  %s\n", s.Categories[name], name)
		}
	}
}
