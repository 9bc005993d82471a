package cmd

import (
	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportTables []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the SQLite tables as a Django fixture",
	Long: `Read the allowed tables straight from the SQLite database and write
them as a Django fixture, without going through the ORM.

Missing or failing tables are reported and skipped; the file is written
with whatever could be exported.

Examples:
  scolarisctl export
  scolarisctl export --output data.json --tables students_student,classes_schoolclass`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		output := exportOutput
		if output == "" {
			output = cfg.Files.Direct
		}
		tables := exportTables
		if len(tables) == 0 {
			tables = cfg.Export.Tables
		}

		ctx := cmd.Context()
		conns := newConnections(cfg)
		defer conns.CloseAll()

		src, err := openSource(ctx, cfg, conns)
		if err != nil {
			color.Red("❌ %v", err)
			return err
		}

		color.Cyan("🔄 Export direct depuis %s...", cfg.SourceDB)
		summary, err := export.NewTableExporter(src, tables).ExportFile(ctx, output)
		if err != nil {
			return err
		}

		color.Green("🎉 Export terminé : %d enregistrements dans %s", summary.Records, output)
		color.Cyan("📊 %d tables exportées, %d vides, %d absentes, %d en erreur",
			summary.Count(export.StatusExported),
			summary.Count(export.StatusEmpty),
			summary.Count(export.StatusMissing),
			summary.Count(export.StatusFailed))
		for _, f := range summary.Failed() {
			color.Yellow("⚠️ %s : %v", f.Table, f.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Fixture file to write (default from config)")
	exportCmd.Flags().StringSliceVar(&exportTables, "tables", nil, "Tables to export (default from config)")
}
