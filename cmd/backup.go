package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/backup"
	"github.com/spf13/cobra"
)

var backupList bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up the SQLite database",
	Long: `Copy the SQLite database into the backup directory under a
timestamp-based name (db_backup_YYYYMMDD_HHMMSS.sqlite3).

Examples:
  scolarisctl backup
  scolarisctl backup --list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		manager := backup.NewManager(cfg.BackupDir)

		if backupList {
			entries, err := manager.List()
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}
			if len(entries) == 0 {
				color.Yellow("📦 Aucune sauvegarde dans %s", cfg.BackupDir)
				return nil
			}
			color.Cyan("📦 Sauvegardes (%d):", len(entries))
			for _, e := range entries {
				fmt.Printf("  - %s  %s  (%s)\n", e.Path, humanize.Bytes(uint64(e.Size)), humanize.Time(e.TakenAt))
			}
			return nil
		}

		color.Cyan("🔄 Sauvegarde de %s...", cfg.SourceDB)
		path, err := manager.CreateBackup(cfg.SourceDB)
		if err != nil {
			color.Red("❌ Erreur lors de la sauvegarde : %v", err)
			return err
		}
		color.Green("✅ Sauvegarde créée : %s", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().BoolVar(&backupList, "list", false, "List existing backups instead of creating one")
}
