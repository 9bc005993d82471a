package cmd

import (
	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/export"
	"github.com/spf13/cobra"
)

var dumpOutput string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Export the SQLite database through manage.py dumpdata",
	Long: `Point the Django project at the SQLite database for the duration of
one dumpdata call and write the fixture file. The target configuration is
restored afterwards, whatever the outcome.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		output := dumpOutput
		if output == "" {
			output = cfg.Files.Export
		}

		conns := newConnections(cfg)
		defer conns.CloseAll()

		color.Cyan("💾 Export des données depuis %s...", cfg.SourceDB)
		dumper := export.NewDumper(conns, newManage(cfg, conns), cfg.SourceDB, cfg.Export.Exclude)
		if err := dumper.Dump(cmd.Context(), output); err != nil {
			color.Red("❌ Erreur lors de l'export : %v", err)
			return err
		}
		color.Green("✅ Données exportées : %s", output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Fixture file to write (default from config)")
}
