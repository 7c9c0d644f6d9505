package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/feedback-cli/internal/importer"
)

var (
	importFile  string
	importTable string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a survey export (XLSX or CSV) into the response store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		imp := importer.New(st, cfg.Import)
		summary, err := imp.ImportFile(ctx, importFile, importTable)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", summary.File),
			zap.String("origin_table", summary.OriginTable),
			zap.Int("imported", summary.Imported),
		)
		fmt.Printf("imported %d records from %d rows (%d rows without text) into %q\n",
			summary.Imported, summary.RowsRead, summary.SkippedRows, summary.OriginTable)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to XLSX or CSV export (required)")
	importCmd.Flags().StringVar(&importTable, "table", "", "origin table name (default derived from file name)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
