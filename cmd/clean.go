package cmd

import (
	"errors"

	"github.com/fatih/color"
	"github.com/scolaris/scolarisctl/internal/fixture"
	"github.com/spf13/cobra"
)

var (
	cleanInput  string
	cleanOutput string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Decode an exported fixture and drop the excluded models",
	Long: `Read an exported fixture, trying each configured encoding in turn,
drop the content types and permissions and write the result as UTF-8.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		input, output := cleanInput, cleanOutput
		if input == "" {
			input = cfg.Files.Export
		}
		if output == "" {
			output = cfg.Files.Cleaned
		}

		color.Cyan("🧹 Nettoyage de %s...", input)
		res, err := fixture.NewCleaner(cfg.Clean.Encodings, cfg.Clean.ExcludeModels).Clean(input, output)
		switch {
		case errors.Is(err, fixture.ErrEmptyExport):
			color.Red("❌ Le fichier d'export est vide")
			return err
		case errors.Is(err, fixture.ErrNoEncoding):
			color.Red("❌ Impossible de décoder %s avec %v", input, cfg.Clean.Encodings)
			return err
		case err != nil:
			color.Red("❌ Erreur lors du nettoyage : %v", err)
			return err
		}

		color.Green("✅ Encodage détecté : %s", res.Encoding)
		color.Cyan("📊 %d objets exportés", res.Total)
		color.Cyan("🧹 %d objets après nettoyage", res.Kept)
		color.Green("✅ Données nettoyées : %s", output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVarP(&cleanInput, "input", "i", "", "Exported fixture (default from config)")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "Cleaned fixture to write (default from config)")
}
