package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	loadFile   string
	loadNative bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import a cleaned fixture into the target database",
	Long: `Import a cleaned fixture into the target database, through
manage.py loaddata or, with --native, with direct inserts in a single
PostgreSQL transaction.

Examples:
  scolarisctl load
  scolarisctl load --file temp_data_cleaned.json --native`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if loadNative {
			cfg.Import.Mode = "native"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		file := loadFile
		if file == "" {
			file = cfg.Files.Cleaned
		}

		ctx := cmd.Context()
		target, err := openImportTarget(ctx, cfg)
		if err != nil {
			return err
		}
		if target != nil {
			defer target.Close()
		}

		conns := newConnections(cfg)
		defer conns.CloseAll()

		importer, err := newLoader(cfg, newManage(cfg, conns), target)
		if err != nil {
			return err
		}

		color.Cyan("📥 Import de %s...", file)
		res, err := importer.Load(ctx, file)
		if err != nil {
			color.Red("❌ Erreur lors de l'import : %v", err)
			return err
		}

		if res.Records > 0 {
			color.Green("✅ %d enregistrements importés", res.Records)
		} else {
			color.Green("✅ Import terminé")
		}
		for _, s := range res.Skipped {
			color.Yellow("⚠️ Ignoré : %s", s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&loadFile, "file", "", "Fixture file to import (default from config)")
	loadCmd.Flags().BoolVar(&loadNative, "native", false, "Insert the records directly instead of running loaddata")
}
