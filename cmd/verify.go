package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/verify"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Count the main tables of the target database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		target, err := openTarget(ctx, cfg)
		if err != nil {
			return err
		}
		defer target.Close()

		version, err := target.Version(ctx)
		if err != nil {
			color.Red("❌ Connexion impossible : %v", err)
			return err
		}
		color.Green("✅ Connexion réussie : %s", version)

		color.Cyan("🔍 Vérification de la migration...")
		report := verify.New(target, cfg.Verify.Tables).Run(ctx)
		if n := report.Failed(); n > 0 {
			return fmt.Errorf("%d tables could not be counted", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
