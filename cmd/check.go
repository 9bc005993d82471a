package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/database/sqlite"
	"github.com/scolaris/scolarisctl/internal/verify"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Inspect the SQLite source database",
	Long: `List the tables of the SQLite database and count the rows of the
main tables. The file is opened read-only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		conns := newConnections(cfg)
		defer conns.CloseAll()

		src, err := openSource(ctx, cfg, conns)
		if err != nil {
			if errors.Is(err, sqlite.ErrSourceMissing) {
				color.Red("❌ %s n'existe pas", cfg.SourceDB)
			}
			return err
		}

		tables, err := src.GetAllTableNames(ctx)
		if err != nil {
			color.Red("❌ Erreur lors de la vérification : %v", err)
			return err
		}

		color.Cyan("📋 Tables SQLite (%d):", len(tables))
		for _, t := range tables {
			fmt.Printf("  - %s\n", t)
		}

		fmt.Println()
		color.Cyan("📊 Données dans les tables principales:")
		verify.New(src, cfg.Verify.Tables).Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
