package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/backup"
	"github.com/scolaris/scolarisctl/internal/fixture"
	"github.com/scolaris/scolarisctl/internal/migration"
	"github.com/scolaris/scolarisctl/internal/verify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	migrateReset  bool
	migrateResume bool
	migrateReport string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the SQLite database to PostgreSQL",
	Long: `Migrate the data of the SQLite database to the target database.

The run backs up the SQLite file, exports its data as a Django fixture,
cleans the fixture, imports it into the target and counts the main tables.
Temporary files are removed whatever the outcome; imported data is never
rolled back.

Examples:
  scolarisctl migrate
  scolarisctl migrate --reset          # drop the target tables and run the Django migrations first
  scolarisctl migrate --resume         # reuse an existing export file
  scolarisctl migrate --report run.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if migrateReset {
			ok, err := confirm(cmd, "⚠️  Toutes les tables de la base cible vont être supprimées. Continuer ?")
			if err != nil {
				return err
			}
			if !ok {
				color.Yellow("❌ Migration annulée")
				return nil
			}
		}

		ctx := cmd.Context()
		color.Cyan("🚀 Migration de SQLite vers %s", cfg.Database.Provider)

		target, err := openTarget(ctx, cfg)
		if err != nil {
			return err
		}
		defer target.Close()

		conns := newConnections(cfg)
		defer conns.CloseAll()
		m := newManage(cfg, conns)

		exporter, exportFile, err := newExporter(ctx, cfg, conns, m)
		if err != nil {
			return err
		}
		importer, err := newLoader(cfg, m, target)
		if err != nil {
			return err
		}

		orchestrator := &migration.Orchestrator{
			Files: migration.Files{
				Source:  cfg.SourceDB,
				Export:  exportFile,
				Cleaned: cfg.Files.Cleaned,
			},
			Options: migration.Options{
				Reset:        migrateReset,
				Resume:       migrateResume,
				FixSequences: cfg.IsPostgres(),
			},
			Backup: backup.NewManager(cfg.BackupDir),
			Export: exporter,
			Clean:  fixture.NewCleaner(cfg.Clean.Encodings, cfg.Clean.ExcludeModels),
			Import: importer,
			Verify: verify.New(target, cfg.Verify.Tables),
			Target: target,
			Schema: m,
		}

		result := orchestrator.Run(ctx)

		if migrateReport != "" {
			if err := result.WriteReport(migrateReport); err != nil {
				logrus.WithError(err).WithField("file", migrateReport).Warn("failed to write migration report")
			} else {
				color.Cyan("📝 Rapport écrit : %s", migrateReport)
			}
		}

		fmt.Println()
		if !result.Succeeded() {
			color.Red("❌ MIGRATION ÉCHOUÉE (étape %s)", result.FailedStep)
			if result.BackupPath != "" {
				color.Yellow("📁 Sauvegarde SQLite : %s", result.BackupPath)
			}
			return fmt.Errorf("migration failed at step %s: %w", result.FailedStep, result.Err)
		}

		color.Green("🎉 MIGRATION RÉUSSIE !")
		color.Cyan("📁 Sauvegarde SQLite : %s", result.BackupPath)
		color.Cyan("💡 Vous pouvez maintenant supprimer %s", cfg.SourceDB)
		color.Cyan("💡 Redémarrez votre serveur Django")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateReset, "reset", false, "Drop the target tables and rebuild the schema before importing")
	migrateCmd.Flags().BoolVar(&migrateResume, "resume", false, "Reuse an existing export file instead of exporting again")
	migrateCmd.Flags().StringVar(&migrateReport, "report", "", "Write a YAML summary of the run to this file")
}
