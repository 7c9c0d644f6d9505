package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sells-group/feedback-cli/internal/monitoring"
)

var statusAllVersions bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show classification coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		version := env.Engine.Version()
		if statusAllVersions {
			version = ""
		}

		collector := monitoring.NewCollector(env.Store)
		snap, err := collector.Collect(ctx, version)
		if err != nil {
			return err
		}

		fmt.Printf("responses:      %d\n", snap.TotalResponses)
		fmt.Printf("classified:     %d\n", snap.TotalClassified)
		fmt.Printf("pending:        %d\n", snap.Pending)
		fmt.Printf("manual review:  %d (%.1f%%)\n", snap.ManualReview, snap.ManualReviewRate*100)
		fmt.Printf("noise:          %d (%.1f%%)\n", snap.Noise, snap.NoiseRate*100)
		if version != "" {
			fmt.Printf("taxonomy:       %s\n", version)
		}

		if len(snap.PerCategory) > 0 {
			fmt.Println("\ncategories:")
			names := make([]string, 0, len(snap.PerCategory))
			for name := range snap.PerCategory {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				if snap.PerCategory[names[i]] != snap.PerCategory[names[j]] {
					return snap.PerCategory[names[i]] > snap.PerCategory[names[j]]
				}
				return names[i] < names[j]
			})
			for _, name := range names {
				fmt.Printf("  %6d  %s\n", snap.PerCategory[name], name)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusAllVersions, "all-versions", false, "count results from every taxonomy version")
	rootCmd.AddCommand(statusCmd)
}
